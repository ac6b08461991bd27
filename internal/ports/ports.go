package ports

import (
	"context"
	"errors"
	"time"

	"IncidentRadar/internal/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// IncidentSource pulls raw items from every requested upstream.
type IncidentSource interface {
	Fetch(ctx context.Context, sources []domain.Source) (FetchReport, error)
}

// FetchReport carries merged items plus per-source failures.
type FetchReport struct {
	Items  []domain.RawItem
	Errors []SourceError
}

// SourceError scopes an upstream failure to one connector.
type SourceError struct {
	Source domain.Source
	Err    error
}

func (e SourceError) Error() string {
	return string(e.Source) + ": " + e.Err.Error()
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// EventRepository persists incidents and drafts idempotently.
type EventRepository interface {
	InsertEventIfNew(ctx context.Context, event domain.StoredEvent) (domain.InsertResult, error)
	InsertDraftIfNew(ctx context.Context, eventID int64, draft domain.DraftPost) (domain.InsertResult, error)
	ReadRecentEvents(ctx context.Context, limit int) ([]domain.StoredEvent, error)
	GetEvent(ctx context.Context, id int64) (domain.StoredEvent, error)
	GetDraftByEvent(ctx context.Context, eventID int64) (domain.DraftPost, error)
}

// DecisionClient asks an external judge whether two items describe the same incident.
// Call budgets are enforced by the caller.
type DecisionClient interface {
	JudgeDuplicate(ctx context.Context, incoming, existing domain.RawItem) (domain.Decision, error)
}

// Notifier announces freshly stored incidents to a chat channel.
type Notifier interface {
	PublishIncident(ctx context.Context, event domain.StoredEvent, draft *domain.DraftPost) error
}

// Scheduler controls when scheduled runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
