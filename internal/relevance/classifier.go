// Package relevance decides whether an upstream item is an AI security incident.
package relevance

import (
	"math"
	"strings"

	"IncidentRadar/internal/domain"
)

// Threshold is the minimum score a candidate needs to survive classification.
const Threshold = 0.4

var aiTerms = []string{
	"ai",
	"artificial intelligence",
	"llm",
	"model",
	"agent",
	"chatgpt",
	"gemini",
	"copilot",
	"claude",
	"anthropic",
	"openai",
	"prompt",
}

var securityTerms = []string{
	"security",
	"vulnerability",
	"cve",
	"breach",
	"rce",
	"exploit",
	"malware",
	"compromise",
	"leak",
	"prompt injection",
	"jailbreak",
	"supply chain",
	"exfiltration",
	"account takeover",
}

var hnIncidentTerms = []string{
	"cve",
	"vulnerability",
	"exploit",
	"breach",
	"malware",
	"prompt injection",
	"jailbreak",
	"data leak",
	"exfiltration",
	"compromise",
	"account takeover",
	"rce",
	"zero-day",
}

var hnNoiseTerms = []string{
	"show hn",
	"ask hn",
	"who is hiring",
	"launch",
	"released",
	"release",
	"benchmark",
	"paper",
	"tutorial",
	"course",
	"job",
	"hiring",
}

// IsRelevant applies the per-source policy to title and body.
func IsRelevant(title, body string, source domain.Source) bool {
	haystack := haystackOf(title, body)
	hasAI := hasAny(haystack, aiTerms)

	switch source {
	case domain.SourceHackerNews:
		return hasAI && hasAny(haystack, hnIncidentTerms) && !hasAny(haystack, hnNoiseTerms)
	case domain.SourceRSS:
		return hasAI && hasAny(haystack, securityTerms)
	case domain.SourceNVD:
		// upstream queries are already keyword scoped
		return true
	default:
		return hasAI
	}
}

// Score returns 0 for irrelevant items and a value in [Threshold, 1] otherwise.
func Score(title, body string, source domain.Source) float64 {
	if !IsRelevant(title, body, source) {
		return 0
	}
	haystack := haystackOf(title, body)
	aiHits := countHits(haystack, aiTerms)
	securityHits := countHits(haystack, securityTerms)
	weighted := math.Min(1, (0.4*float64(aiHits)+0.55*float64(securityHits))/4)
	return math.Max(Threshold, weighted)
}

// Classify promotes a raw item to a candidate, or reports false when it is dropped.
func Classify(item domain.RawItem) (domain.Candidate, bool) {
	score := Score(item.Title, item.Summary, item.Source)
	if score < Threshold {
		return domain.Candidate{}, false
	}
	return domain.Candidate{RawItem: item, Relevance: score}, true
}

func haystackOf(title, body string) string {
	return strings.ToLower(title + " " + body)
}

func hasAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func countHits(text string, terms []string) int {
	hits := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	return hits
}
