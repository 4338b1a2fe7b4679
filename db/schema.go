// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect captures the few SQL differences between PostgreSQL and SQLite.
// Everything else (RETURNING, ON CONFLICT, $N placeholders) is shared.
type Dialect struct {
	Name string

	// DriverName is the database/sql driver registered for this dialect
	DriverName string

	// Now is an SQL expression evaluating to the current Unix time in seconds
	Now string

	serialKey string
}

var (
	Postgres = Dialect{
		Name:       "postgres",
		DriverName: "postgres",
		Now:        "CAST(EXTRACT(EPOCH FROM NOW()) AS BIGINT)",
		serialKey:  "BIGSERIAL PRIMARY KEY",
	}
	SQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		Now:        "CAST(strftime('%s','now') AS INTEGER)",
		serialKey:  "INTEGER PRIMARY KEY AUTOINCREMENT",
	}
)

// DialectFor returns the dialect for a configured database type
func DialectFor(name string) (Dialect, error) {
	switch name {
	case Postgres.Name:
		return Postgres, nil
	case SQLite.Name:
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database type %q", name)
	}
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	schema := strings.ReplaceAll(schemaTemplate, "{{SERIAL}}", d.serialKey)

	// Executed one statement at a time; not every driver accepts batches.
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

const schemaTemplate = `
-- Polls
CREATE TABLE IF NOT EXISTS polls (
    id {{SERIAL}},
    unique_id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    password_hash TEXT,
    created_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL,
    expiration_type TEXT NOT NULL CHECK (expiration_type IN ('hours', 'days')),
    expiration_value INTEGER NOT NULL,
    is_expired BOOLEAN NOT NULL DEFAULT FALSE,
    winner_option_id BIGINT
);

CREATE INDEX IF NOT EXISTS idx_polls_active ON polls(is_expired, expires_at);
CREATE INDEX IF NOT EXISTS idx_polls_created_at ON polls(created_at);

-- Options
CREATE TABLE IF NOT EXISTS poll_options (
    id {{SERIAL}},
    poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    option_text TEXT NOT NULL,
    image_path TEXT,
    vote_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_poll_options_poll_id ON poll_options(poll_id);

-- Votes
CREATE TABLE IF NOT EXISTS votes (
    id {{SERIAL}},
    poll_id BIGINT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
    option_id BIGINT NOT NULL REFERENCES poll_options(id) ON DELETE CASCADE,
    ip_address TEXT NOT NULL,
    voted_at BIGINT NOT NULL,
    UNIQUE (poll_id, ip_address)
);

CREATE INDEX IF NOT EXISTS idx_votes_option_id ON votes(option_id);

-- Rate limits
CREATE TABLE IF NOT EXISTS rate_limits (
    ip_address TEXT NOT NULL,
    action_type TEXT NOT NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    last_attempt BIGINT NOT NULL,
    blocked_until BIGINT,
    PRIMARY KEY (ip_address, action_type)
)
`
