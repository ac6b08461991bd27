package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

// OpenAIJudge implements DecisionClient backed by OpenAI-compatible APIs.
type OpenAIJudge struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

var _ ports.DecisionClient = (*OpenAIJudge)(nil)

func NewOpenAIJudge(apiKey, model, baseURL string, httpClient *http.Client, logger *slog.Logger) *OpenAIJudge {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIJudge{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: orDiscard(logger),
	}
}

func (j *OpenAIJudge) JudgeDuplicate(ctx context.Context, incoming, existing domain.RawItem) (domain.Decision, error) {
	prompt, err := userPrompt(incoming, existing)
	if err != nil {
		return domain.Decision{}, err
	}

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return domain.Decision{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Decision{}, fmt.Errorf("openai: no response choices")
	}

	j.logger.Debug("openai decision", "model", j.model, "tokens", resp.Usage.TotalTokens)
	return parseDecision(resp.Choices[0].Message.Content, j.model)
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}
