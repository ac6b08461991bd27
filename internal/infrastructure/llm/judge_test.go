package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncidentRadar/internal/config"
	"IncidentRadar/internal/domain"
)

var (
	incoming = domain.RawItem{Source: domain.SourceRSS, ExternalID: "adv-1", Title: "LLM gateway prompt injection", URL: "https://a.example/1"}
	existing = domain.RawItem{Source: domain.SourceNVD, ExternalID: "CVE-2026-0001", Title: "CVE-2026-0001 (NVD)", URL: "https://nvd.example/1"}
)

func TestParseDecisionNormalizesReplies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		reply      string
		duplicate  bool
		confidence float64
	}{
		{"bare", `{"duplicate": true, "confidence": 0.9, "reason": "same CVE"}`, true, 0.9},
		{"fenced", "Sure:\n```json\n{\"duplicate\": \"yes\", \"confidence\": \"0.8\"}\n```", true, 0.8},
		{"prose", `Verdict follows {"duplicate":"Duplicate","confidence":7} done`, true, 1},
		{"negative", `{"duplicate":"no","confidence":-2}`, false, 0},
		{"garbage confidence", `{"duplicate":false,"confidence":"high"}`, false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			decision, err := parseDecision(tc.reply, "m")
			require.NoError(t, err)
			assert.Equal(t, tc.duplicate, decision.Duplicate)
			assert.InDelta(t, tc.confidence, decision.Confidence, 1e-9)
			assert.Equal(t, "m", decision.Model)
		})
	}
}

func TestParseDecisionTrimsReasonAndRejectsNonJSON(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	decision, err := parseDecision(fmt.Sprintf(`{"duplicate":true,"confidence":1,"reason":%q}`, long), "m")
	require.NoError(t, err)
	assert.Len(t, decision.Reason, maxReasonLen)

	_, err = parseDecision("I cannot decide", "m")
	require.Error(t, err)
}

func TestUserPromptCarriesPairAndRules(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := incoming
	in.PublishedAt = &published

	prompt, err := userPrompt(in, existing)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(prompt), &decoded))
	assert.Equal(t, "rss/nvd", decoded["pair"])
	assert.Len(t, decoded["rules"], 3)
	assert.Contains(t, prompt, "2026-01-02T03:04:05Z")
}

func TestOpenAIJudgeSendsJSONModeRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model          string `json:"model"`
			Messages       []struct{ Role, Content string }
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)
		if assert.Len(t, body.Messages, 2) {
			assert.Equal(t, "system", body.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"duplicate\":true,\"confidence\":0.91,\"reason\":\"same CVE\"}"},"finish_reason":"stop"}],"usage":{"total_tokens":42}}`)
	}))
	defer srv.Close()

	judge := NewOpenAIJudge("sk-test", "gpt-test", srv.URL+"/", srv.Client(), nil)
	decision, err := judge.JudgeDuplicate(context.Background(), incoming, existing)
	require.NoError(t, err)
	assert.True(t, decision.Duplicate)
	assert.InDelta(t, 0.91, decision.Confidence, 1e-9)
	assert.Equal(t, "same CVE", decision.Reason)
	assert.Equal(t, "gpt-test", decision.Model)
}

func TestOpenAIJudgeSurfacesUpstreamErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	judge := NewOpenAIJudge("sk-test", "gpt-test", srv.URL, srv.Client(), nil)
	_, err := judge.JudgeDuplicate(context.Background(), incoming, existing)
	require.Error(t, err)
}

func TestAnthropicJudgeReadsTextContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))

		var body struct {
			System string `json:"system"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.System, "deduplication engine")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"m1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"{\"duplicate\":false,\"confidence\":0.3}"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	judge := NewAnthropicJudge("ak-test", "claude-test", srv.URL, srv.Client())
	decision, err := judge.JudgeDuplicate(context.Background(), incoming, existing)
	require.NoError(t, err)
	assert.False(t, decision.Duplicate)
	assert.InDelta(t, 0.3, decision.Confidence, 1e-9)
}

func TestHTTPJudgePostsPair(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/judge", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "incoming")
		assert.Contains(t, body, "existing")

		fmt.Fprint(w, `{"duplicate":"true","confidence":"0.8","reason":"same campaign","model":"local-judge"}`)
	}))
	defer srv.Close()

	judge := NewHTTPJudge(srv.URL, "k", time.Second)
	decision, err := judge.JudgeDuplicate(context.Background(), incoming, existing)
	require.NoError(t, err)
	assert.True(t, decision.Duplicate)
	assert.Equal(t, "local-judge", decision.Model)
}

func TestHTTPJudgeNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPJudge(srv.URL, "", time.Second).JudgeDuplicate(context.Background(), incoming, existing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNewDecisionClientSelectsProvider(t *testing.T) {
	t.Parallel()

	_, err := NewDecisionClient(context.Background(), config.DecisionConfig{Enabled: false}, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = NewDecisionClient(context.Background(), config.DecisionConfig{Enabled: true, Provider: "openai"}, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	client, err := NewDecisionClient(context.Background(), config.DecisionConfig{Enabled: true, Provider: "http", HTTPURL: "http://judge"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPJudge{}, client)

	client, err = NewDecisionClient(context.Background(), config.DecisionConfig{Enabled: true, Provider: "anthropic", AnthropicKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicJudge{}, client)

	_, err = NewDecisionClient(context.Background(), config.DecisionConfig{Enabled: true, Provider: "ollama"}, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDisabled))
}
