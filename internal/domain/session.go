package domain

import (
	"context"
	"time"
)

// Session records a single authenticated client session. A user may hold
// several concurrent active sessions (multi-device); Active flips true to
// false exactly once, on logout or the idle sweep, and never reverses.
type Session struct {
	ID           string // UUID
	UserEmail    string
	Data         map[string]string // login-time metadata (ip, user agent)
	CreatedAt    time.Time
	LastAccessed time.Time
	Active       bool
	EndedAt      *time.Time
}

// SessionRepository defines data access for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	ListActiveByEmail(ctx context.Context, email string) ([]*Session, error)

	// Touch bumps last_accessed on activity.
	Touch(ctx context.Context, id string, at time.Time) error

	// End deactivates the session and reports whether this call flipped
	// it. Ending an unknown or already-ended session is a no-op success
	// returning false.
	End(ctx context.Context, id string, at time.Time) (bool, error)

	// DeactivateIdle ends every active session whose last_accessed is
	// older than the cutoff and returns how many were swept.
	DeactivateIdle(ctx context.Context, cutoff time.Time) (int, error)

	// CountActive returns the number of currently active sessions.
	CountActive(ctx context.Context) (int, error)
}
