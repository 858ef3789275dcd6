package database

import (
	"context"
	"fmt"
)

// schema holds the idempotent DDL for every collection the service owns,
// including the lookup indexes the hot paths depend on.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		status TEXT NOT NULL DEFAULT 'active',
		permissions TEXT[] NOT NULL DEFAULT '{}',
		two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		two_factor_secret TEXT NOT NULL DEFAULT '',
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		last_failed_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by TEXT NOT NULL DEFAULT '',
		last_login TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (lower(email))`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		user_email TEXT NOT NULL,
		data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_accessed TIMESTAMPTZ NOT NULL DEFAULT now(),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_user_email_idx ON sessions (user_email)`,
	`CREATE INDEX IF NOT EXISTS sessions_active_idx ON sessions (active, last_accessed)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		user_email TEXT NOT NULL,
		action TEXT NOT NULL,
		details JSONB NOT NULL DEFAULT '{}',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_timestamp_idx ON audit_logs (timestamp)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_user_email_idx ON audit_logs (user_email)`,

	`CREATE TABLE IF NOT EXISTS rate_limits (
		id BIGSERIAL PRIMARY KEY,
		key TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS rate_limits_key_timestamp_idx ON rate_limits (key, timestamp)`,

	`CREATE TABLE IF NOT EXISTS articles (
		id UUID PRIMARY KEY,
		user_email TEXT NOT NULL,
		topic TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'research',
		artifacts JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS articles_user_email_idx ON articles (user_email)`,
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (cp *ConnectionPool) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	cp.logger.Info("database schema ensured")
	return nil
}
