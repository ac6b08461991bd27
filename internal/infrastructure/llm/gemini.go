package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

type GeminiJudge struct {
	client *genai.Client
	model  string
}

var _ ports.DecisionClient = (*GeminiJudge)(nil)

func NewGeminiJudge(ctx context.Context, apiKey, model string) (*GeminiJudge, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiJudge{client: client, model: model}, nil
}

func (j *GeminiJudge) JudgeDuplicate(ctx context.Context, incoming, existing domain.RawItem) (domain.Decision, error) {
	prompt, err := userPrompt(incoming, existing)
	if err != nil {
		return domain.Decision{}, err
	}

	model := j.client.GenerativeModel(j.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("gemini generate: %w", err)
	}

	var reply strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				reply.WriteString(string(text))
			}
		}
		break
	}
	if reply.Len() == 0 {
		return domain.Decision{}, fmt.Errorf("gemini: no response candidates")
	}
	return parseDecision(reply.String(), j.model)
}

func (j *GeminiJudge) Close() error {
	return j.client.Close()
}
