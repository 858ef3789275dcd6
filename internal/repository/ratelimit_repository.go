package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// PostgresRateLimitRepository implements domain.RateLimitRepository with
// one row per authentication attempt.
type PostgresRateLimitRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRateLimitRepository creates a new rate limit repository
func NewPostgresRateLimitRepository(db *sql.DB, logger *slog.Logger) *PostgresRateLimitRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRateLimitRepository{db: db, logger: logger}
}

// CountSince counts attempts for the key inside the trailing window.
func (r *PostgresRateLimitRepository) CountSince(ctx context.Context, key string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limits WHERE key = $1 AND timestamp >= $2`,
		key, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limit records: %w", err)
	}
	return count, nil
}

// Record inserts one attempt row.
func (r *PostgresRateLimitRepository) Record(ctx context.Context, key string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limits (key, timestamp) VALUES ($1, $2)`,
		key, at,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rate limit record: %w", err)
	}
	return nil
}

// DeleteBefore removes rows older than the cutoff and returns the count.
func (r *PostgresRateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE timestamp < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rate limit records: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(rows), nil
}
