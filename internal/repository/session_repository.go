package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/draftmill/internal/domain"
)

// PostgresSessionRepository implements domain.SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSessionRepository creates a new session repository
func NewPostgresSessionRepository(db *sql.DB, logger *slog.Logger) *PostgresSessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionRepository{db: db, logger: logger}
}

// Create inserts a new active session.
func (r *PostgresSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	data, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("failed to encode session data: %w", err)
	}

	query := `
		INSERT INTO sessions (id, user_email, data, active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING created_at, last_accessed
	`

	err = r.db.QueryRowContext(ctx, query, session.ID, session.UserEmail, data).
		Scan(&session.CreatedAt, &session.LastAccessed)
	if err != nil {
		r.logger.Error("failed to create session",
			slog.String("user_email", session.UserEmail),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create session: %w", err)
	}
	session.Active = true
	return nil
}

// GetByID retrieves a session by id.
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, user_email, data, created_at, last_accessed, active, ended_at
		FROM sessions
		WHERE id = $1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListActiveByEmail returns the user's currently active sessions, most
// recently used first.
func (r *PostgresSessionRepository) ListActiveByEmail(ctx context.Context, email string) ([]*domain.Session, error) {
	query := `
		SELECT id, user_email, data, created_at, last_accessed, active, ended_at
		FROM sessions
		WHERE user_email = $1 AND active = TRUE
		ORDER BY last_accessed DESC
	`

	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Touch bumps last_accessed for an active session.
func (r *PostgresSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_accessed = $1 WHERE id = $2 AND active = TRUE`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// End deactivates the session. The active=TRUE guard makes the true-to-false
// transition happen at most once; ending an ended session is a no-op and
// reports false, so callers keyed on the transition (the sessions gauge) do
// not fire twice.
func (r *PostgresSessionRepository) End(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE, ended_at = $1 WHERE id = $2 AND active = TRUE`,
		at, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeactivateIdle sweeps sessions idle beyond the cutoff.
func (r *PostgresSessionRepository) DeactivateIdle(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = FALSE, ended_at = now() WHERE active = TRUE AND last_accessed < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate idle sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(rows), nil
}

// CountActive returns how many sessions are currently active, for gauge
// reconciliation.
func (r *PostgresSessionRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE active = TRUE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	session := &domain.Session{}
	var data []byte
	err := row.Scan(
		&session.ID,
		&session.UserEmail,
		&data,
		&session.CreatedAt,
		&session.LastAccessed,
		&session.Active,
		&session.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &session.Data); err != nil {
			return nil, fmt.Errorf("failed to decode session data: %w", err)
		}
	}
	return session, nil
}
