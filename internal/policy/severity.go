// Package policy infers severity and decides which incidents publish without review.
package policy

import (
	"strings"

	"IncidentRadar/internal/domain"
)

var highSeverityTerms = []string{"critical", "rce", "zero-day", "breach", "exfiltration", "account takeover"}

var mediumSeverityTerms = []string{"cve", "vulnerability", "exploit"}

// InferSeverity maps title and body wording to a severity tier.
func InferSeverity(title, body string) domain.Severity {
	haystack := strings.ToLower(title + " " + body)
	for _, term := range highSeverityTerms {
		if strings.Contains(haystack, term) {
			return domain.SeverityHigh
		}
	}
	for _, term := range mediumSeverityTerms {
		if strings.Contains(haystack, term) {
			return domain.SeverityMedium
		}
	}
	return domain.SeverityLow
}

// Rank orders severities low < medium < high.
func Rank(severity domain.Severity) int {
	switch severity {
	case domain.SeverityHigh:
		return 3
	case domain.SeverityMedium:
		return 2
	default:
		return 1
	}
}

// ParseSeverity accepts low/medium/high and falls back to high.
func ParseSeverity(value string) domain.Severity {
	switch domain.Severity(strings.ToLower(strings.TrimSpace(value))) {
	case domain.SeverityLow:
		return domain.SeverityLow
	case domain.SeverityMedium:
		return domain.SeverityMedium
	default:
		return domain.SeverityHigh
	}
}

// Confidence clamps a relevance score into the stored confidence range.
func Confidence(relevance float64) float64 {
	return min(0.99, max(0.45, relevance))
}
