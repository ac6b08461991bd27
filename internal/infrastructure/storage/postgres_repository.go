// Package storage implements the event repository on Postgres and SQLite.
package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

//go:embed schema.sql
var postgresSchema string

const (
	eventsTable = "incident_events"
	draftsTable = "draft_posts"
)

var eventColumns = []string{
	"id", "source", "external_id", "title", "url", "summary",
	"published_at", "severity", "confidence", "fingerprint", "created_at",
}

var draftColumns = []string{
	"id", "event_id", "status", "headline", "linkedin_text", "x_text", "tags",
	"slug", "approved_at", "published_at", "created_at",
}

// PostgresRepository persists incidents and drafts into Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

var _ ports.EventRepository = (*PostgresRepository)(nil)

// NewPostgresRepository opens a pool and fails fast when the database is unreachable.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// EnsureSchema applies the embedded schema; safe to run repeatedly.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// InsertEventIfNew relies on the unique fingerprint: a conflict inserts nothing
// and returns the id of the existing row.
func (r *PostgresRepository) InsertEventIfNew(ctx context.Context, event domain.StoredEvent) (domain.InsertResult, error) {
	query, args, err := r.sb.Insert(eventsTable).
		Columns("source", "external_id", "title", "url", "summary", "published_at", "severity", "confidence", "fingerprint").
		Values(string(event.Source), event.ExternalID, event.Title, event.URL, event.Summary,
			event.PublishedAt, string(event.Severity), event.Confidence, event.Fingerprint).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("build insert event: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx, query, args...).Scan(&id)
	if err == nil {
		return domain.InsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.InsertResult{}, fmt.Errorf("insert event: %w", err)
	}

	id, err = r.lookupID(ctx, eventsTable, "fingerprint", event.Fingerprint)
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("lookup event: %w", err)
	}
	return domain.InsertResult{ID: id, Inserted: false}, nil
}

// InsertDraftIfNew keeps at most one draft per event.
func (r *PostgresRepository) InsertDraftIfNew(ctx context.Context, eventID int64, draft domain.DraftPost) (domain.InsertResult, error) {
	query, args, err := r.sb.Insert(draftsTable).
		Columns("event_id", "status", "headline", "linkedin_text", "x_text", "tags", "slug", "approved_at", "published_at").
		Values(eventID, string(draft.Status), draft.Headline, draft.LinkedInText, draft.XText, draft.Tags,
			nullString(draft.Slug), draft.ApprovedAt, draft.PublishedAt).
		Suffix("ON CONFLICT (event_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("build insert draft: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx, query, args...).Scan(&id)
	if err == nil {
		return domain.InsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.InsertResult{}, fmt.Errorf("insert draft: %w", err)
	}

	id, err = r.lookupID(ctx, draftsTable, "event_id", eventID)
	if err != nil {
		return domain.InsertResult{}, fmt.Errorf("lookup draft: %w", err)
	}
	return domain.InsertResult{ID: id, Inserted: false}, nil
}

// ReadRecentEvents returns the newest events by publication, then creation time.
func (r *PostgresRepository) ReadRecentEvents(ctx context.Context, limit int) ([]domain.StoredEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	query, args, err := r.sb.Select(eventColumns...).
		From(eventsTable).
		OrderBy("COALESCE(published_at, created_at) DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	events := make([]domain.StoredEvent, 0, limit)
	for rows.Next() {
		event, err := scanPostgresEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return events, nil
}

func (r *PostgresRepository) GetEvent(ctx context.Context, id int64) (domain.StoredEvent, error) {
	query, args, err := r.sb.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.StoredEvent{}, fmt.Errorf("build get event: %w", err)
	}

	event, err := scanPostgresEvent(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StoredEvent{}, fmt.Errorf("event %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return domain.StoredEvent{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return event, nil
}

// GetDraftByEvent returns the single draft attached to an event.
func (r *PostgresRepository) GetDraftByEvent(ctx context.Context, eventID int64) (domain.DraftPost, error) {
	query, args, err := r.sb.Select(draftColumns...).
		From(draftsTable).
		Where(sq.Eq{"event_id": eventID}).
		ToSql()
	if err != nil {
		return domain.DraftPost{}, fmt.Errorf("build get draft: %w", err)
	}

	var (
		draft  domain.DraftPost
		status string
		slug   *string
	)
	err = r.pool.QueryRow(ctx, query, args...).Scan(&draft.ID, &draft.EventID, &status, &draft.Headline,
		&draft.LinkedInText, &draft.XText, &draft.Tags, &slug, &draft.ApprovedAt, &draft.PublishedAt, &draft.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DraftPost{}, fmt.Errorf("draft for event %d: %w", eventID, ports.ErrNotFound)
	}
	if err != nil {
		return domain.DraftPost{}, fmt.Errorf("get draft: %w", err)
	}

	draft.Status = domain.DraftStatus(status)
	if slug != nil {
		draft.Slug = *slug
	}
	return draft, nil
}

func (r *PostgresRepository) lookupID(ctx context.Context, table, column string, value any) (int64, error) {
	query, args, err := r.sb.Select("id").From(table).Where(sq.Eq{column: value}).ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func scanPostgresEvent(row pgx.Row) (domain.StoredEvent, error) {
	var (
		event    domain.StoredEvent
		source   string
		severity string
	)
	err := row.Scan(&event.ID, &source, &event.ExternalID, &event.Title, &event.URL, &event.Summary,
		&event.PublishedAt, &severity, &event.Confidence, &event.Fingerprint, &event.CreatedAt)
	if err != nil {
		return domain.StoredEvent{}, err
	}
	event.Source = domain.Source(source)
	event.Severity = domain.Severity(severity)
	return event, nil
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
