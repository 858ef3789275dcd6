package domain

import (
	"context"
	"time"
)

// Role values. Custom roles are allowed; these two carry built-in defaults.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User status values.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User represents an identity record. Email is unique, lowercased and
// immutable once set; changing an address is delete+recreate.
type User struct {
	ID                  string // UUID
	Email               string
	Name                string
	PasswordHash        string // bcrypt, never serialized to API responses
	Role                string
	Status              string
	Permissions         []string // additive on top of role defaults
	TwoFactorEnabled    bool
	TwoFactorSecret     string // AES-GCM ciphertext, empty unless enabled
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	CreatedAt           time.Time
	CreatedBy           string
	LastLogin           *time.Time
}

// Active reports whether the account may authenticate.
func (u *User) Active() bool {
	return u.Status == StatusActive
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*User, error)

	// SetPermissions replaces the user's individual permission overrides.
	SetPermissions(ctx context.Context, id string, permissions []string) error

	// SetTwoFactor updates the enabled flag and encrypted secret in a
	// single statement so a disabled account can never keep a secret.
	SetTwoFactor(ctx context.Context, id string, enabled bool, encryptedSecret string) error

	// RecordLoginFailure bumps failed_login_attempts atomically on the
	// database side to avoid lost updates under concurrent attempts.
	RecordLoginFailure(ctx context.Context, id string, at time.Time) error

	// RecordLoginSuccess resets the failure counter and stamps last_login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	// CountActiveAdmins supports the last-admin invariant.
	CountActiveAdmins(ctx context.Context) (int, error)
}
