package domain

import "time"

// RuntimeCaps bounds the work a single run may do.
type RuntimeCaps struct {
	HNMaxItems       int
	DecisionMaxCalls int
	MaxEventsPerRun  int
}

// RunResult summarizes one orchestrator invocation.
type RunResult struct {
	RunID         string    `json:"runId"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
	Sources       []Source  `json:"sources"`
	Fetched       int       `json:"fetched"`
	Processed     int       `json:"processed"`
	Relevant      int       `json:"relevant"`
	Inserted      int       `json:"inserted"`
	Deduped       int       `json:"deduped"`
	DraftsCreated int       `json:"draftsCreated"`
	DecisionCalls int       `json:"decisionCalls"`
	Errors        []string  `json:"errors"`
}

// Decision is the verdict returned by an external duplicate judge.
type Decision struct {
	Duplicate  bool
	Confidence float64
	Reason     string
	Model      string
}

// InsertResult reports the row id and whether a new row was written.
type InsertResult struct {
	ID       int64
	Inserted bool
}
