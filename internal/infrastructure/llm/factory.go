package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"IncidentRadar/internal/config"
	"IncidentRadar/internal/ports"
)

// NewDecisionClient picks the configured provider. It returns ErrDisabled when
// deduplication by model is off or the provider has no credentials.
func NewDecisionClient(ctx context.Context, cfg config.DecisionConfig, logger *slog.Logger) (ports.DecisionClient, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key missing: %w", ErrDisabled)
		}
		return NewOpenAIJudge(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, httpClient, logger), nil

	case "anthropic", "claude":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic api key missing: %w", ErrDisabled)
		}
		return NewAnthropicJudge(cfg.AnthropicKey, cfg.AnthropicModel, "", httpClient), nil

	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini api key missing: %w", ErrDisabled)
		}
		judge, err := NewGeminiJudge(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return judge, nil

	case "http":
		if cfg.HTTPURL == "" {
			return nil, fmt.Errorf("decision http url missing: %w", ErrDisabled)
		}
		return NewHTTPJudge(cfg.HTTPURL, cfg.HTTPAPIKey, cfg.Timeout), nil

	default:
		return nil, fmt.Errorf("unsupported decision provider: %s", cfg.Provider)
	}
}
