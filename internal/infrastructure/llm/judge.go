// Package llm adapts hosted language models to the duplicate-decision port.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"IncidentRadar/internal/domain"
)

// ErrDisabled means no decision client is configured; callers skip the tie-break tier.
var ErrDisabled = errors.New("decision client disabled")

const maxReasonLen = 240

const systemPrompt = "You are a strict incident deduplication engine for AI security incident feeds. " +
	`Return valid JSON only: {"duplicate": boolean, "confidence": number, "reason": string}. ` +
	"Mark duplicate true only when both records refer to the same incident, CVE, campaign, or disclosure event. " +
	"Confidence must be a number between 0 and 1."

var decisionRules = []string{
	"Same CVE -> duplicate true",
	"Same campaign/event with different writeups -> duplicate true",
	"Same vendor family but different CVEs/events -> duplicate false",
}

type promptItem struct {
	Source      string `json:"source"`
	ExternalID  string `json:"externalId"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

func toPromptItem(item domain.RawItem) promptItem {
	p := promptItem{
		Source:     string(item.Source),
		ExternalID: item.ExternalID,
		Title:      item.Title,
		URL:        item.URL,
		Summary:    item.Summary,
	}
	if item.PublishedAt != nil {
		p.PublishedAt = item.PublishedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return p
}

// userPrompt renders the pair and the ruleset as indented JSON.
func userPrompt(incoming, existing domain.RawItem) (string, error) {
	payload := struct {
		Pair     string     `json:"pair"`
		Incoming promptItem `json:"incoming"`
		Existing promptItem `json:"existing"`
		Rules    []string   `json:"rules"`
	}{
		Pair:     string(incoming.Source) + "/" + string(existing.Source),
		Incoming: toPromptItem(incoming),
		Existing: toPromptItem(existing),
		Rules:    decisionRules,
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}
	return string(raw), nil
}

var fencedExpr = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// extractJSONBlock prefers a fenced block, else the outermost braces.
func extractJSONBlock(text string) (string, bool) {
	if m := fencedExpr.FindStringSubmatch(text); len(m) == 2 && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1]), true
	}
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		return text[first : last+1], true
	}
	return "", false
}

// parseDecision normalizes a model reply into a Decision.
func parseDecision(reply, model string) (domain.Decision, error) {
	block, ok := extractJSONBlock(reply)
	if !ok {
		return domain.Decision{}, fmt.Errorf("no json object in reply")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return domain.Decision{}, fmt.Errorf("decode reply: %w", err)
	}

	reason := ""
	if v, ok := fields["reason"]; ok && v != nil {
		reason = strings.TrimSpace(fmt.Sprint(v))
	}
	if runes := []rune(reason); len(runes) > maxReasonLen {
		reason = strings.TrimSpace(string(runes[:maxReasonLen]))
	}

	return domain.Decision{
		Duplicate:  duplicateFlag(fields["duplicate"]),
		Confidence: confidenceValue(fields["confidence"]),
		Reason:     reason,
		Model:      model,
	}, nil
}

func duplicateFlag(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "duplicate":
			return true
		}
	}
	return false
}

func confidenceValue(value any) float64 {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	return min(max(f, 0), 1)
}
