package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		activated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS activation_codes (
		user_id UUID NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		code TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		used_at TIMESTAMPTZ,
		is_used BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, code)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE INDEX IF NOT EXISTS idx_users_status ON users(status)`,
	`CREATE INDEX IF NOT EXISTS idx_activation_codes_expires_at ON activation_codes(expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activation_codes_is_used ON activation_codes(is_used)`,
}

// EnsureSchema creates the registration tables and indexes when missing. It
// runs at startup of both the API server and the worker.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("platform/db: ensure schema: %w", err)
		}
	}
	return nil
}
