package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

// Fixed-width UTC so lexical order matches time order in COALESCE sorts.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteRepository implements EventRepository on a local SQLite file.
type SQLiteRepository struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

var _ ports.EventRepository = (*SQLiteRepository)(nil)

// OpenSQLite opens dsn and runs migrations. In-memory databases are pinned to
// one connection so every query sees the same schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := NewMigrationRunner(db).Run(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return NewSQLiteRepository(db), nil
}

// NewSQLiteRepository wraps an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Question).RunWith(db),
		now: time.Now,
	}
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) InsertEventIfNew(ctx context.Context, event domain.StoredEvent) (domain.InsertResult, error) {
	var id int64
	err := r.sb.Insert(eventsTable).
		Columns("source", "external_id", "title", "url", "summary", "published_at", "severity", "confidence", "fingerprint", "created_at").
		Values(string(event.Source), event.ExternalID, event.Title, event.URL, event.Summary,
			formatTime(event.PublishedAt), string(event.Severity), event.Confidence, event.Fingerprint, r.stamp()).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING RETURNING id").
		QueryRowContext(ctx).
		Scan(&id)
	if err == nil {
		return domain.InsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.InsertResult{}, fmt.Errorf("insert event: %w", err)
	}

	if err := r.sb.Select("id").From(eventsTable).
		Where(sq.Eq{"fingerprint": event.Fingerprint}).
		QueryRowContext(ctx).Scan(&id); err != nil {
		return domain.InsertResult{}, fmt.Errorf("lookup event: %w", err)
	}
	return domain.InsertResult{ID: id, Inserted: false}, nil
}

func (r *SQLiteRepository) InsertDraftIfNew(ctx context.Context, eventID int64, draft domain.DraftPost) (domain.InsertResult, error) {
	var id int64
	err := r.sb.Insert(draftsTable).
		Columns("event_id", "status", "headline", "linkedin_text", "x_text", "tags", "slug", "approved_at", "published_at", "created_at").
		Values(eventID, string(draft.Status), draft.Headline, draft.LinkedInText, draft.XText, draft.Tags,
			nullString(draft.Slug), formatTime(draft.ApprovedAt), formatTime(draft.PublishedAt), r.stamp()).
		Suffix("ON CONFLICT (event_id) DO NOTHING RETURNING id").
		QueryRowContext(ctx).
		Scan(&id)
	if err == nil {
		return domain.InsertResult{ID: id, Inserted: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.InsertResult{}, fmt.Errorf("insert draft: %w", err)
	}

	if err := r.sb.Select("id").From(draftsTable).
		Where(sq.Eq{"event_id": eventID}).
		QueryRowContext(ctx).Scan(&id); err != nil {
		return domain.InsertResult{}, fmt.Errorf("lookup draft: %w", err)
	}
	return domain.InsertResult{ID: id, Inserted: false}, nil
}

func (r *SQLiteRepository) ReadRecentEvents(ctx context.Context, limit int) ([]domain.StoredEvent, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.sb.Select(eventColumns...).
		From(eventsTable).
		OrderBy("COALESCE(published_at, created_at) DESC", "id DESC").
		Limit(uint64(limit)).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	events := make([]domain.StoredEvent, 0, limit)
	for rows.Next() {
		event, err := scanSQLiteEvent(rows)
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

func (r *SQLiteRepository) GetEvent(ctx context.Context, id int64) (domain.StoredEvent, error) {
	row := r.sb.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	event, err := scanSQLiteEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredEvent{}, fmt.Errorf("event %d: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return domain.StoredEvent{}, fmt.Errorf("get event %d: %w", id, err)
	}
	return event, nil
}

// GetDraftByEvent returns the single draft attached to an event.
func (r *SQLiteRepository) GetDraftByEvent(ctx context.Context, eventID int64) (domain.DraftPost, error) {
	var (
		draft                         domain.DraftPost
		status                        string
		slug, approvedAt, publishedAt sql.NullString
		createdAt                     string
	)
	err := r.sb.Select(draftColumns...).
		From(draftsTable).
		Where(sq.Eq{"event_id": eventID}).
		QueryRowContext(ctx).
		Scan(&draft.ID, &draft.EventID, &status, &draft.Headline, &draft.LinkedInText, &draft.XText, &draft.Tags,
			&slug, &approvedAt, &publishedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DraftPost{}, fmt.Errorf("draft for event %d: %w", eventID, ports.ErrNotFound)
	}
	if err != nil {
		return domain.DraftPost{}, fmt.Errorf("get draft: %w", err)
	}

	draft.Status = domain.DraftStatus(status)
	draft.Slug = slug.String
	draft.ApprovedAt = parseStoredTime(approvedAt)
	draft.PublishedAt = parseStoredTime(publishedAt)
	if ts := parseStoredTime(sql.NullString{String: createdAt, Valid: true}); ts != nil {
		draft.CreatedAt = *ts
	}
	return draft, nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(sqliteTimeLayout)
}

func scanSQLiteEvent(row sq.RowScanner) (domain.StoredEvent, error) {
	var (
		event       domain.StoredEvent
		source      string
		severity    string
		publishedAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&event.ID, &source, &event.ExternalID, &event.Title, &event.URL, &event.Summary,
		&publishedAt, &severity, &event.Confidence, &event.Fingerprint, &createdAt)
	if err != nil {
		return domain.StoredEvent{}, err
	}
	event.Source = domain.Source(source)
	event.Severity = domain.Severity(severity)
	event.PublishedAt = parseStoredTime(publishedAt)
	if ts := parseStoredTime(sql.NullString{String: createdAt, Valid: true}); ts != nil {
		event.CreatedAt = *ts
	}
	return event, nil
}

func formatTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.UTC().Format(sqliteTimeLayout)
	return &formatted
}

func parseStoredTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	parsed, err := time.Parse(sqliteTimeLayout, value.String)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, value.String)
		if err != nil {
			return nil
		}
	}
	utc := parsed.UTC()
	return &utc
}
