package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/draftmill/internal/domain"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

const userColumns = `id, email, name, password_hash, role, status, permissions,
	two_factor_enabled, two_factor_secret, failed_login_attempts,
	last_failed_login, created_at, created_by, last_login`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	user := &domain.User{}
	var permissions pq.StringArray
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&permissions,
		&user.TwoFactorEnabled,
		&user.TwoFactorSecret,
		&user.FailedLoginAttempts,
		&user.LastFailedLogin,
		&user.CreatedAt,
		&user.CreatedBy,
		&user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	user.Permissions = []string(permissions)
	return user, nil
}

// Create inserts a new user. Duplicate emails surface as ErrValidation.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(user.Email)

	query := `
		INSERT INTO users (id, email, name, password_hash, role, status, permissions, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Status,
		pq.Array(user.Permissions),
		user.CreatedBy,
	).Scan(&user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: user already exists", domain.ErrValidation)
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// Update persists name, role and status. Email is immutable by design and
// deliberately absent from the statement.
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = $1, role = $2, status = $3, password_hash = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Role,
		user.Status,
		user.PasswordHash,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return checkAffected(result)
}

// Delete removes the user record. The last-admin invariant is enforced at
// the service layer before this is called.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return checkAffected(result)
}

// List returns all users ordered by creation time.
func (r *PostgresUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetPermissions replaces the user's individual permission overrides.
func (r *PostgresUserRepository) SetPermissions(ctx context.Context, id string, permissions []string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET permissions = $1 WHERE id = $2`,
		pq.Array(permissions), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	return checkAffected(result)
}

// SetTwoFactor updates the 2FA flag and encrypted secret in one statement,
// so disabling always clears the secret atomically.
func (r *PostgresUserRepository) SetTwoFactor(ctx context.Context, id string, enabled bool, encryptedSecret string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET two_factor_enabled = $1, two_factor_secret = $2 WHERE id = $3`,
		enabled, encryptedSecret, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set two factor state: %w", err)
	}
	return checkAffected(result)
}

// RecordLoginFailure increments the failure counter server-side; no
// read-modify-write, so concurrent failed attempts are not lost.
func (r *PostgresUserRepository) RecordLoginFailure(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1, last_failed_login = $1
		 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

// RecordLoginSuccess resets the failure counter and stamps last_login.
func (r *PostgresUserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET failed_login_attempts = 0, last_failed_login = NULL, last_login = $1
		 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	return nil
}

// CountActiveAdmins returns how many active admin accounts exist.
func (r *PostgresUserRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND status = $2`,
		domain.RoleAdmin, domain.StatusActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
