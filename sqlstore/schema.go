package sqlstore

import (
	"context"
	"fmt"
)

// CreateSchema creates all tables needed by the store.
// Safe to call multiple times - uses IF NOT EXISTS.
func (s *SQLStore) CreateSchema(ctx context.Context) error {
	var schema string
	switch s.driver {
	case DriverPostgres:
		schema = postgresSchema
	case DriverSQLite:
		schema = sqliteSchema
	default:
		return fmt.Errorf("unsupported database driver %q", s.driver)
	}

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS proposals (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    text TEXT NOT NULL CHECK (text <> ''),
    upvotes BIGINT NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
    downvotes BIGINT NOT NULL DEFAULT 0 CHECK (downvotes >= 0)
);

CREATE TABLE IF NOT EXISTS comments (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    proposal_id BIGINT NOT NULL REFERENCES proposals(id),
    user_name TEXT,
    text TEXT
);

CREATE INDEX IF NOT EXISTS idx_comments_proposal_id ON comments(proposal_id, created_at DESC);

CREATE TABLE IF NOT EXISTS big_issue_votes (
    user_id TEXT PRIMARY KEY,
    choice TEXT NOT NULL CHECK (choice IN ('agree', 'disagree')),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS big_issue_counts (
    choice TEXT PRIMARY KEY CHECK (choice IN ('agree', 'disagree')),
    total BIGINT NOT NULL DEFAULT 0 CHECK (total >= 0)
);

INSERT INTO big_issue_counts (choice, total) VALUES ('agree', 0), ('disagree', 0)
ON CONFLICT (choice) DO NOTHING;
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS proposals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    text TEXT NOT NULL CHECK (text <> ''),
    upvotes INTEGER NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
    downvotes INTEGER NOT NULL DEFAULT 0 CHECK (downvotes >= 0)
);

CREATE TABLE IF NOT EXISTS comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    proposal_id INTEGER NOT NULL REFERENCES proposals(id),
    user_name TEXT,
    text TEXT
);

CREATE INDEX IF NOT EXISTS idx_comments_proposal_id ON comments(proposal_id, created_at DESC);

CREATE TABLE IF NOT EXISTS big_issue_votes (
    user_id TEXT PRIMARY KEY,
    choice TEXT NOT NULL CHECK (choice IN ('agree', 'disagree')),
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS big_issue_counts (
    choice TEXT PRIMARY KEY CHECK (choice IN ('agree', 'disagree')),
    total INTEGER NOT NULL DEFAULT 0 CHECK (total >= 0)
);

INSERT INTO big_issue_counts (choice, total) VALUES ('agree', 0), ('disagree', 0)
ON CONFLICT (choice) DO NOTHING;
`
