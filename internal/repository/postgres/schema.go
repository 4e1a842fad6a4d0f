package postgres

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email VARCHAR(320) UNIQUE NOT NULL,
		display_name TEXT,
		avatar_url TEXT,
		bio TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identity_links (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		provider VARCHAR(32) NOT NULL,
		provider_user_id VARCHAR(255) NOT NULL,
		provider_email VARCHAR(320),
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT identity_links_provider_user_key UNIQUE (provider, provider_user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_identity_links_user_id ON identity_links(user_id)`,
}

// CreateTables creates the necessary database tables
func CreateTables(ctx context.Context, db DBTX) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
