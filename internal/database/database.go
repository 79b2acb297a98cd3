package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Schema creates every table if needed. Detail, tag link and sync rows belong
// to their capture and go away with it. Sync rows also go away with their
// integration.
const Schema = `
CREATE TABLE IF NOT EXISTS captures (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title VARCHAR(200) NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('TEXT','AUDIO','VIDEO')),
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_captures_user_created ON captures(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_captures_kind ON captures(kind);

CREATE TABLE IF NOT EXISTS text_details (
	capture_id TEXT PRIMARY KEY REFERENCES captures(id) ON DELETE CASCADE,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS media_details (
	capture_id TEXT PRIMARY KEY REFERENCES captures(id) ON DELETE CASCADE,
	file_key TEXT NOT NULL DEFAULT '',
	file_name TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	etag TEXT NOT NULL DEFAULT '',
	file_size BIGINT,
	duration_us BIGINT,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name VARCHAR(50) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, name)
);

CREATE TABLE IF NOT EXISTS capture_tags (
	capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
	tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (capture_id, tag_id)
);

CREATE TABLE IF NOT EXISTS integrations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	credentials JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_integrations_user ON integrations(user_id, created_at);

CREATE TABLE IF NOT EXISTS capture_syncs (
	id TEXT PRIMARY KEY,
	capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
	integration_id TEXT NOT NULL REFERENCES integrations(id) ON DELETE CASCADE,
	external_id VARCHAR(255) NOT NULL,
	last_synced TIMESTAMPTZ NOT NULL,
	sync_status VARCHAR(20) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_capture_syncs_capture ON capture_syncs(capture_id);`

// EnsureSchema creates the tables if needed. Keeping the migration in code
// lets docker-compose bootstrap everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
