package policy

import (
	"strings"

	"IncidentRadar/internal/domain"
)

// AutoPublish gates publication on source trust and a minimum severity.
type AutoPublish struct {
	trusted     map[string]struct{}
	minSeverity domain.Severity
}

// NewAutoPublish builds the gate from configured source names and minimum severity.
func NewAutoPublish(trustedSources []string, minSeverity domain.Severity) AutoPublish {
	trusted := make(map[string]struct{}, len(trustedSources))
	for _, name := range trustedSources {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			trusted[name] = struct{}{}
		}
	}
	return AutoPublish{trusted: trusted, minSeverity: ParseSeverity(string(minSeverity))}
}

// ShouldPublish is true iff the source is trusted and severity clears the minimum.
func (a AutoPublish) ShouldPublish(event domain.StoredEvent) bool {
	if _, ok := a.trusted[strings.ToLower(string(event.Source))]; !ok {
		return false
	}
	return Rank(event.Severity) >= Rank(a.minSeverity)
}
