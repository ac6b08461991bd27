package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
)

func openTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleEvent(fingerprint string, published *time.Time) domain.StoredEvent {
	return domain.StoredEvent{
		Source:      domain.SourceNVD,
		ExternalID:  "CVE-2026-0001",
		Title:       "CVE-2026-0001 (NVD)",
		URL:         "https://nvd.nist.gov/vuln/detail/CVE-2026-0001",
		Summary:     "Prompt injection in LLM gateway",
		PublishedAt: published,
		Severity:    domain.SeverityHigh,
		Confidence:  0.87,
		Fingerprint: fingerprint,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestMigrationRunnerIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(context.Background()))
	require.NoError(t, runner.Run(context.Background()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestInsertEventIfNewConflictReturnsExistingID(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	first, err := repo.InsertEventIfNew(ctx, sampleEvent("fp-1", nil))
	require.NoError(t, err)
	assert.True(t, first.Inserted)
	assert.NotZero(t, first.ID)

	again, err := repo.InsertEventIfNew(ctx, sampleEvent("fp-1", nil))
	require.NoError(t, err)
	assert.False(t, again.Inserted)
	assert.Equal(t, first.ID, again.ID)

	stored, err := repo.GetEvent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceNVD, stored.Source)
	assert.Equal(t, domain.SeverityHigh, stored.Severity)
	assert.InDelta(t, 0.87, stored.Confidence, 1e-9)
	assert.Nil(t, stored.PublishedAt)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestInsertDraftIfNewKeepsOneDraftPerEvent(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	event, err := repo.InsertEventIfNew(ctx, sampleEvent("fp-draft", nil))
	require.NoError(t, err)

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	draft := domain.DraftPost{
		Status:       domain.DraftStatusPublished,
		Headline:     "AI security incident: CVE-2026-0001 (NVD)",
		LinkedInText: "long",
		XText:        "short",
		Tags:         "#AISecurity",
		Slug:         "ai-security-incident-cve-2026-0001-nvd-cve-2026-0001",
		ApprovedAt:   &now,
		PublishedAt:  &now,
	}

	created, err := repo.InsertDraftIfNew(ctx, event.ID, draft)
	require.NoError(t, err)
	assert.True(t, created.Inserted)

	repeat, err := repo.InsertDraftIfNew(ctx, event.ID, draft)
	require.NoError(t, err)
	assert.False(t, repeat.Inserted)
	assert.Equal(t, created.ID, repeat.ID)

	stored, err := repo.GetDraftByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftStatusPublished, stored.Status)
	assert.Equal(t, draft.Slug, stored.Slug)
	require.NotNil(t, stored.PublishedAt)
	assert.True(t, now.Equal(*stored.PublishedAt))
}

func TestManualDraftsStoreNullSlug(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	for _, fp := range []string{"fp-a", "fp-b"} {
		event, err := repo.InsertEventIfNew(ctx, sampleEvent(fp, nil))
		require.NoError(t, err)
		res, err := repo.InsertDraftIfNew(ctx, event.ID, domain.DraftPost{Status: domain.DraftStatusDraft, Headline: "h"})
		require.NoError(t, err)
		assert.True(t, res.Inserted)
	}
}

func TestReadRecentEventsOrdersByPublicationThenCreation(t *testing.T) {
	repo := openTestRepository(t)
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	_, err := repo.InsertEventIfNew(ctx, sampleEvent("old", ptr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	_, err = repo.InsertEventIfNew(ctx, sampleEvent("undated", nil))
	require.NoError(t, err)
	_, err = repo.InsertEventIfNew(ctx, sampleEvent("newer", ptr(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)

	events, err := repo.ReadRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "undated", events[0].Fingerprint)
	assert.Equal(t, "newer", events[1].Fingerprint)
	assert.Equal(t, "old", events[2].Fingerprint)

	limited, err := repo.ReadRecentEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetEventMissingReturnsNotFound(t *testing.T) {
	repo := openTestRepository(t)

	_, err := repo.GetEvent(context.Background(), 404)
	require.ErrorIs(t, err, ports.ErrNotFound)

	_, err = repo.GetDraftByEvent(context.Background(), 404)
	require.ErrorIs(t, err, ports.ErrNotFound)
}
