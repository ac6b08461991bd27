package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

const anthropicMaxTokens = 400

type AnthropicJudge struct {
	client *anthropic.Client
	model  string
}

var _ ports.DecisionClient = (*AnthropicJudge)(nil)

func NewAnthropicJudge(apiKey, model, baseURL string, httpClient *http.Client) *AnthropicJudge {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(httpClient))
	}
	return &AnthropicJudge{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (j *AnthropicJudge) JudgeDuplicate(ctx context.Context, incoming, existing domain.RawItem) (domain.Decision, error) {
	prompt, err := userPrompt(incoming, existing)
	if err != nil {
		return domain.Decision{}, err
	}

	resp, err := j.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(j.model),
		System: systemPrompt,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
		MaxTokens: anthropicMaxTokens,
	})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var reply strings.Builder
	for _, content := range resp.Content {
		if content.Text != nil {
			reply.WriteString(*content.Text)
		}
	}
	if reply.Len() == 0 {
		return domain.Decision{}, fmt.Errorf("anthropic: no response content")
	}
	return parseDecision(reply.String(), j.model)
}
