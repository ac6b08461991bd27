package dedup

import "IncidentRadar/internal/domain"

const (
	// SeedWindow is how many stored events seed a run's history window.
	SeedWindow = 120
	// MaxWindow is the capacity of the in-run history window.
	MaxWindow = 150
)

// RunState is the mutable dedup context of exactly one run.
type RunState struct {
	seen   map[string]struct{}
	recent []domain.StoredEvent
	budget int
	calls  int
}

// NewRunState seeds the window (newest first) and the decision budget.
func NewRunState(recent []domain.StoredEvent, budget int) *RunState {
	window := make([]domain.StoredEvent, 0, MaxWindow)
	for i := 0; i < len(recent) && i < MaxWindow; i++ {
		window = append(window, recent[i])
	}
	if budget < 0 {
		budget = 0
	}
	return &RunState{
		seen:   map[string]struct{}{},
		recent: window,
		budget: budget,
	}
}

// MarkSeen records a fingerprint and reports whether it was already seen this run.
func (s *RunState) MarkSeen(fingerprint string) bool {
	if _, ok := s.seen[fingerprint]; ok {
		return true
	}
	s.seen[fingerprint] = struct{}{}
	return false
}

// Remember pushes a freshly inserted event to the front of the window.
func (s *RunState) Remember(event domain.StoredEvent) {
	s.recent = append([]domain.StoredEvent{event}, s.recent...)
	if len(s.recent) > MaxWindow {
		s.recent = s.recent[:MaxWindow]
	}
}

// Recent exposes the window, newest first.
func (s *RunState) Recent() []domain.StoredEvent {
	return s.recent
}

// BudgetLeft reports the remaining decision calls.
func (s *RunState) BudgetLeft() int {
	return s.budget
}

// Calls reports how many decision calls were consumed.
func (s *RunState) Calls() int {
	return s.calls
}

func (s *RunState) take() bool {
	if s.budget <= 0 {
		return false
	}
	s.budget--
	s.calls++
	return true
}
