package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type migration struct {
	version    int
	statements []string
}

// migrations are applied in order; never edit a released one, append instead
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id                 TEXT PRIMARY KEY,
				email              TEXT NOT NULL UNIQUE,
				password_hash      TEXT NOT NULL,
				email_verified     BOOLEAN NOT NULL DEFAULT FALSE,
				daily_search_count INTEGER NOT NULL DEFAULT 0,
				last_search_date   TEXT NOT NULL DEFAULT '',
				created_at         BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS user_tokens (
				token      TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				purpose    TEXT NOT NULL,
				expires_at BIGINT NOT NULL,
				created_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_user_tokens_expires ON user_tokens(expires_at)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				token      TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				expires_at BIGINT NOT NULL,
				created_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
			`CREATE TABLE IF NOT EXISTS saved_recipes (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL,
				video_id      TEXT NOT NULL,
				video_title   TEXT NOT NULL,
				video_url     TEXT NOT NULL,
				thumbnail_url TEXT NOT NULL DEFAULT '',
				ingredients   TEXT NOT NULL,
				steps         TEXT NOT NULL,
				tags          TEXT NOT NULL,
				created_at    BIGINT NOT NULL,
				UNIQUE (user_id, video_id)
			)`,
			`CREATE TABLE IF NOT EXISTS popular_videos (
				video_id     TEXT PRIMARY KEY,
				save_count   INTEGER NOT NULL DEFAULT 0,
				last_updated BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_popular_videos_count ON popular_videos(save_count DESC)`,
			`CREATE TABLE IF NOT EXISTS search_keywords (
				keyword      TEXT PRIMARY KEY,
				search_count INTEGER NOT NULL DEFAULT 0,
				last_updated BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS batch_jobs (
				id           TEXT PRIMARY KEY,
				job_type     TEXT NOT NULL,
				status       TEXT NOT NULL,
				started_at   BIGINT,
				completed_at BIGINT,
				error        TEXT NOT NULL DEFAULT '',
				metadata     TEXT NOT NULL DEFAULT '{}',
				created_at   BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_batch_jobs_status_created ON batch_jobs(status, created_at)`,
		},
	},
}

// CurrentSchemaVersion is the version Migrate brings the database to
func CurrentSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies every migration newer than the stored schema version
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.ExecContext(ctx, db.rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
				m.version, toMillis(time.Now()))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		db.log.Info().Int("version", m.version).Msg("migration applied")
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a fresh database
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.queryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
