package security

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/pkg/cache"
)

// PermissionWildcard grants every permission unconditionally. The admin
// role resolves to it.
const PermissionWildcard = "*"

// Well-known permission strings. Permissions are opaque exact-match tokens;
// there is no prefix or pattern matching.
const (
	PermReadContent    = "read:content"
	PermWriteContent   = "write:content"
	PermEditOwnContent = "edit:own_content"
	PermManageUsers    = "manage:users"
	PermViewAuditLog   = "view:audit_log"
)

// rolePermissions maps roles to their default permission sets. Unknown
// (custom) roles start empty and rely entirely on per-user overrides.
var rolePermissions = map[string][]string{
	domain.RoleUser: {
		PermReadContent,
		PermWriteContent,
		PermEditOwnContent,
	},
	domain.RoleAdmin: {
		PermissionWildcard,
	},
}

const permissionCacheTTL = 30 * time.Second

// Authorizer resolves the effective permission set for a user: the union of
// the role's defaults and the user's individual overrides. Resolved sets are
// cached briefly and invalidated on permission mutation.
type Authorizer struct {
	users  domain.UserRepository
	cache  *cache.Cache[[]string]
	logger *slog.Logger
}

// NewAuthorizer creates the permission resolver.
func NewAuthorizer(users domain.UserRepository, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{
		users:  users,
		cache:  cache.New[[]string](),
		logger: logger,
	}
}

// GetPermissions returns the resolved permission set for the user, sorted
// for stable output. Keyed by email because that is what token claims
// carry; emails never change once an account exists.
func (a *Authorizer) GetPermissions(ctx context.Context, email string) ([]string, error) {
	if cached, ok := a.cache.Get(email); ok {
		return cached, nil
	}

	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	set := map[string]struct{}{}
	for _, p := range rolePermissions[user.Role] {
		set[p] = struct{}{}
	}
	for _, p := range user.Permissions {
		set[p] = struct{}{}
	}

	resolved := make([]string, 0, len(set))
	for p := range set {
		resolved = append(resolved, p)
	}
	sort.Strings(resolved)

	a.cache.Set(email, resolved, permissionCacheTTL)
	return resolved, nil
}

// Check reports whether the user holds the required permission, either via
// the wildcard or a literal match.
func (a *Authorizer) Check(ctx context.Context, email, required string) bool {
	permissions, err := a.GetPermissions(ctx, email)
	if err != nil {
		a.logger.Warn("permission check failed",
			slog.String("email", email),
			slog.String("permission", required),
			slog.String("error", err.Error()),
		)
		return false
	}
	for _, p := range permissions {
		if p == PermissionWildcard || p == required {
			return true
		}
	}
	return false
}

// CheckRole is the resolver for callers that only hold token claims: admin
// passes everything, other roles fall back to their default set. Per-user
// overrides require a database-backed Check.
func CheckRole(role, required string) bool {
	for _, p := range rolePermissions[role] {
		if p == PermissionWildcard || p == required {
			return true
		}
	}
	return false
}

// Invalidate drops the cached permission set after a grant/revoke or role
// change so the next check sees the new state.
func (a *Authorizer) Invalidate(email string) {
	a.cache.Delete(email)
}
