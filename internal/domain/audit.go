package domain

import (
	"context"
	"time"
)

// Audit event tags. Free-form strings, but the known ones live here so the
// writers and the forensics queries agree.
const (
	AuditLoginSuccess      = "login_success"
	AuditLoginFailed       = "login_failed"
	AuditLoginRateLimited  = "login_rate_limited"
	AuditLogout            = "logout"
	AuditTwoFactorFailed   = "two_factor_failed"
	AuditTwoFactorEnabled  = "two_factor_enabled"
	AuditTwoFactorDisabled = "two_factor_disabled"
	AuditUserCreated       = "user_created"
	AuditUserDeleted       = "user_deleted"
	AuditUserRoleChanged   = "user_role_changed"
	AuditUserStatusChanged = "user_status_changed"
	AuditPasswordChanged   = "password_changed"
	AuditPermissionChanged = "permission_changed"
	AuditArticleCreated    = "article_created"
	AuditArticleAdvanced   = "article_advanced"
)

// AuditEntry is an append-only record of a security-relevant event.
// Entries are never mutated or deleted by normal operation.
type AuditEntry struct {
	ID        int64
	UserEmail string // actor or subject
	Action    string
	Details   map[string]string
	IPAddress string
	UserAgent string
	Timestamp time.Time
}

// AuditRepository defines append/query access to the audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]*AuditEntry, error)
	ListByEmail(ctx context.Context, email string, limit int) ([]*AuditEntry, error)
}

// RateLimitRepository stores one row per authentication attempt. A key is
// limited when the count of its rows inside the trailing window reaches the
// configured maximum; rows older than the window only matter for storage.
type RateLimitRepository interface {
	CountSince(ctx context.Context, key string, since time.Time) (int, error)
	Record(ctx context.Context, key string, at time.Time) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
