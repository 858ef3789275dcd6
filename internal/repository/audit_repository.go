package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yourorg/draftmill/internal/domain"
)

// PostgresAuditRepository implements domain.AuditRepository. The table is
// append-only; there is deliberately no update or delete statement here.
type PostgresAuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAuditRepository creates a new audit repository
func NewPostgresAuditRepository(db *sql.DB, logger *slog.Logger) *PostgresAuditRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAuditRepository{db: db, logger: logger}
}

// Append inserts one audit entry.
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (user_email, action, details, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err = r.db.QueryRowContext(ctx, query,
		entry.UserEmail,
		entry.Action,
		details,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (r *PostgresAuditRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, user_email, action, details, ip_address, user_agent, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`
	return r.queryEntries(ctx, query, limit)
}

// ListByEmail returns the newest entries for one actor or subject.
func (r *PostgresAuditRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, user_email, action, details, ip_address, user_agent, timestamp
		FROM audit_logs
		WHERE user_email = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	return r.queryEntries(ctx, query, email, limit)
}

func (r *PostgresAuditRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query audit log", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		entry := &domain.AuditEntry{}
		var details []byte
		err := rows.Scan(
			&entry.ID,
			&entry.UserEmail,
			&entry.Action,
			&details,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
