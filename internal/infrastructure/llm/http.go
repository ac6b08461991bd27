package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

const httpJudgeModel = "http-judge"

// HTTPJudge posts the pair to a self-hosted decision service. The service may
// answer with the decision object directly or wrap it in prose.
type HTTPJudge struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.DecisionClient = (*HTTPJudge)(nil)

func NewHTTPJudge(endpoint, apiKey string, timeout time.Duration) *HTTPJudge {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPJudge{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *HTTPJudge) JudgeDuplicate(ctx context.Context, incoming, existing domain.RawItem) (domain.Decision, error) {
	payload := map[string]any{
		"system":   systemPrompt,
		"incoming": toPromptItem(incoming),
		"existing": toPromptItem(existing),
		"rules":    decisionRules,
	}

	raw, err := c.post(ctx, "/judge", payload)
	if err != nil {
		return domain.Decision{}, err
	}

	model := httpJudgeModel
	var envelope struct {
		Model string `json:"model"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Model != "" {
		model = envelope.Model
	}
	return parseDecision(string(raw), model)
}

func (c *HTTPJudge) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}
