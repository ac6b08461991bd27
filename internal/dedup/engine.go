// Package dedup fingerprints incidents and decides novelty against recent history.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

const (
	// MaxCandidates caps how many semantic candidates reach the decision client.
	MaxCandidates = 4
	// MinDecisionConfidence is the confidence a "duplicate" verdict needs to count.
	MinDecisionConfidence = 0.75

	titleOverlapStrong = 0.82
	titleOverlapWeak   = 0.60
	bodyOverlapWeak    = 0.55
)

// Tier names the stage that settled a duplicate check.
type Tier string

const (
	TierNone     Tier = "none"
	TierStrict   Tier = "strict"
	TierDecision Tier = "decision"
)

// Verdict is the outcome of a duplicate check.
type Verdict struct {
	Duplicate bool
	Tier      Tier
	Match     *domain.StoredEvent
	// Errors holds fail-open decision failures worth surfacing in the run result.
	Errors []string
}

// Engine runs the strict, semantic and decision tiers.
type Engine struct {
	decider ports.DecisionClient
	logger  *slog.Logger
}

// NewEngine wires an optional decision client; nil disables the third tier.
func NewEngine(decider ports.DecisionClient, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{decider: decider, logger: logger}
}

// Check compares incoming against the run's history window.
func (e *Engine) Check(ctx context.Context, state *RunState, incoming domain.RawItem) Verdict {
	recent := state.Recent()

	for i := range recent {
		if IsStrictDuplicate(recent[i].Item(), incoming) {
			match := recent[i]
			return Verdict{Duplicate: true, Tier: TierStrict, Match: &match}
		}
	}

	if e.decider == nil {
		return Verdict{Tier: TierNone}
	}

	var verdict Verdict
	verdict.Tier = TierNone
	for _, candidate := range SemanticCandidates(recent, incoming, MaxCandidates) {
		if !state.take() {
			e.logger.Debug("decision budget exhausted", "title", incoming.Title)
			break
		}

		decision, err := e.decider.JudgeDuplicate(ctx, incoming, candidate.Item())
		if err != nil {
			e.logger.Warn("decision call failed", "title", incoming.Title, "candidate_id", candidate.ID, "error", err)
			verdict.Errors = append(verdict.Errors, fmt.Sprintf("decision: %v", err))
			continue
		}

		if decision.Duplicate && decision.Confidence >= MinDecisionConfidence {
			match := candidate
			verdict.Duplicate = true
			verdict.Tier = TierDecision
			verdict.Match = &match
			return verdict
		}
	}

	return verdict
}

// IsStrictDuplicate applies the cheap deterministic signals: URL, CVE id, external id.
func IsStrictDuplicate(existing, incoming domain.RawItem) bool {
	if existing.URL != "" && existing.URL == incoming.URL {
		return true
	}

	cveA := ExtractCVE(existing.ExternalID + " " + existing.Title + " " + existing.Summary)
	cveB := ExtractCVE(incoming.ExternalID + " " + incoming.Title + " " + incoming.Summary)
	if cveA != "" && cveA == cveB {
		return true
	}

	return existing.ExternalID != "" && incoming.ExternalID != "" &&
		strings.EqualFold(existing.ExternalID, incoming.ExternalID)
}

// IsSemanticCandidate reports whether titles (and bodies) overlap enough to ask the judge.
func IsSemanticCandidate(existing, incoming domain.RawItem) bool {
	titleOverlap := Overlap(existing.Title, incoming.Title)
	if titleOverlap >= titleOverlapStrong {
		return true
	}
	return titleOverlap >= titleOverlapWeak && Overlap(existing.Summary, incoming.Summary) >= bodyOverlapWeak
}

// SemanticCandidates returns up to limit qualifying events in window order.
func SemanticCandidates(recent []domain.StoredEvent, incoming domain.RawItem, limit int) []domain.StoredEvent {
	var out []domain.StoredEvent
	for _, event := range recent {
		if len(out) >= limit {
			break
		}
		if IsSemanticCandidate(event.Item(), incoming) {
			out = append(out, event)
		}
	}
	return out
}
