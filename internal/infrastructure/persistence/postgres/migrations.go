package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		guild_id   TEXT NOT NULL,
		member_id  TEXT NOT NULL,
		game       TEXT NOT NULL DEFAULT '',
		source     TEXT NOT NULL DEFAULT 'presence',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at   TIMESTAMPTZ NOT NULL,
		CHECK (ended_at > started_at)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_interval
		ON sessions (guild_id, member_id, started_at, ended_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_guild_started
		ON sessions (guild_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_guild_member
		ON sessions (guild_id, member_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_guild_ended
		ON sessions (guild_id, ended_at)`,
	`CREATE TABLE IF NOT EXISTS guild_versions (
		guild_id TEXT PRIMARY KEY,
		version  BIGINT NOT NULL DEFAULT 0
	)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
