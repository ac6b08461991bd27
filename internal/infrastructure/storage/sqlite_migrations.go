package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// MigrationRunner applies pending schema migrations to a SQLite database.
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "incident_events", Apply: migrateIncidentEvents},
			{Version: 2, Name: "draft_posts", Apply: migrateDraftPosts},
		},
	}
}

// Run enables foreign keys, ensures the tracking table and applies each
// unrecorded migration in its own transaction.
func (r *MigrationRunner) Run(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range r.migrations {
		var count int
		if err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version,
		).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func migrateIncidentEvents(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE IF NOT EXISTS incident_events (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			source       TEXT NOT NULL,
			external_id  TEXT NOT NULL,
			title        TEXT NOT NULL,
			url          TEXT NOT NULL,
			summary      TEXT NOT NULL DEFAULT '',
			published_at TEXT,
			severity     TEXT NOT NULL,
			confidence   REAL NOT NULL,
			fingerprint  TEXT NOT NULL UNIQUE,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS incident_events_recent_idx
			ON incident_events (COALESCE(published_at, created_at) DESC)`,
	)
}

func migrateDraftPosts(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE IF NOT EXISTS draft_posts (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id      INTEGER NOT NULL UNIQUE REFERENCES incident_events(id) ON DELETE CASCADE,
			status        TEXT NOT NULL CHECK (status IN ('draft', 'approved', 'published')),
			headline      TEXT NOT NULL,
			linkedin_text TEXT NOT NULL,
			x_text        TEXT NOT NULL,
			tags          TEXT NOT NULL DEFAULT '',
			slug          TEXT UNIQUE,
			approved_at   TEXT,
			published_at  TEXT,
			created_at    TEXT NOT NULL
		)`,
	)
}

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %.40q: %w", stmt, err)
		}
	}
	return nil
}
