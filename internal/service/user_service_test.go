package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/security"
	"github.com/yourorg/draftmill/internal/security/audit"
	"github.com/yourorg/draftmill/internal/security/auth"
	"github.com/yourorg/draftmill/internal/security/crypto"
)

type userFixture struct {
	users    *memUserRepo
	auditLog *memAuditRepo
	svc      *UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()

	enc, err := crypto.NewEncryptor("test-encryption-key")
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}

	f := &userFixture{
		users:    newMemUserRepo(),
		auditLog: &memAuditRepo{},
	}
	f.svc = NewUserService(
		f.users,
		security.NewAuthorizer(f.users, nil),
		auth.NewTwoFactor(enc),
		audit.NewLogger(f.auditLog, nil),
		"org.com",
		nil,
	)
	return f
}

func (f *userFixture) mustCreate(t *testing.T, email, role string) *domain.User {
	t.Helper()
	user, err := f.svc.CreateUser(context.Background(), email, "Password123", "Someone", role, "system", audit.RequestMeta{})
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return user
}

func TestCreateUserDomainAllowList(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateUser(ctx, "outsider@gmail.com", "Password123", "X", domain.RoleUser, "system", audit.RequestMeta{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for foreign domain, got %v", err)
	}

	user := f.mustCreate(t, "Writer@ORG.com", domain.RoleUser)
	if user.Email != "writer@org.com" {
		t.Fatalf("expected lowercased email, got %s", user.Email)
	}
	if user.PasswordHash == "Password123" {
		t.Fatalf("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Password123")) != nil {
		t.Fatalf("stored hash does not verify")
	}

	// Duplicate, case-insensitively.
	if _, err := f.svc.CreateUser(ctx, "WRITER@org.com", "Password123", "X", domain.RoleUser, "system", audit.RequestMeta{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for duplicate email, got %v", err)
	}
}

func TestCreateUserShortPassword(t *testing.T) {
	f := newUserFixture(t)

	_, err := f.svc.CreateUser(context.Background(), "short@org.com", "tiny", "X", domain.RoleUser, "system", audit.RequestMeta{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for short password, got %v", err)
	}
}

func TestLastAdminGuard(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	admin := f.mustCreate(t, "admin@org.com", domain.RoleAdmin)
	f.mustCreate(t, "user@org.com", domain.RoleUser)

	// Sole admin cannot be demoted, disabled or deleted.
	if err := f.svc.UpdateRole(ctx, admin.Email, domain.RoleUser, "admin@org.com", audit.RequestMeta{}); !errors.Is(err, domain.ErrLastAdmin) {
		t.Fatalf("expected last-admin error on demote, got %v", err)
	}
	if err := f.svc.UpdateStatus(ctx, admin.Email, domain.StatusDisabled, "admin@org.com", audit.RequestMeta{}); !errors.Is(err, domain.ErrLastAdmin) {
		t.Fatalf("expected last-admin error on disable, got %v", err)
	}
	if err := f.svc.DeleteUser(ctx, admin.Email, "admin@org.com", audit.RequestMeta{}); !errors.Is(err, domain.ErrLastAdmin) {
		t.Fatalf("expected last-admin error on delete, got %v", err)
	}

	// With a second admin the first becomes removable.
	f.mustCreate(t, "admin2@org.com", domain.RoleAdmin)
	if err := f.svc.UpdateRole(ctx, admin.Email, domain.RoleUser, "admin2@org.com", audit.RequestMeta{}); err != nil {
		t.Fatalf("demote with second admin failed: %v", err)
	}
}

func TestChangePasswordFailsClosed(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := f.mustCreate(t, "pw@org.com", domain.RoleUser)

	if err := f.svc.ChangePassword(ctx, user.Email, "wrong-current", "NewPassword1", audit.RequestMeta{}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, user.Email, "Password123", "tiny", audit.RequestMeta{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for short new password, got %v", err)
	}
	if err := f.svc.ChangePassword(ctx, user.Email, "Password123", "NewPassword1", audit.RequestMeta{}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("NewPassword1")) != nil {
		t.Fatalf("new password does not verify")
	}
	if !containsAction(f.auditLog.actions(), domain.AuditPasswordChanged) {
		t.Fatalf("expected password_changed audit entry")
	}
}

func TestGrantRevokePermissionIdempotent(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := f.mustCreate(t, "perm@org.com", domain.RoleUser)

	if err := f.svc.GrantPermission(ctx, user.Email, security.PermViewAuditLog, "admin@org.com", audit.RequestMeta{}); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	// Granting again is a no-op success.
	if err := f.svc.GrantPermission(ctx, user.Email, security.PermViewAuditLog, "admin@org.com", audit.RequestMeta{}); err != nil {
		t.Fatalf("repeat grant failed: %v", err)
	}
	if len(user.Permissions) != 1 {
		t.Fatalf("expected exactly one override, got %v", user.Permissions)
	}

	if err := f.svc.RevokePermission(ctx, user.Email, security.PermViewAuditLog, "admin@org.com", audit.RequestMeta{}); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	// Revoking an absent permission is also a no-op success.
	if err := f.svc.RevokePermission(ctx, user.Email, security.PermViewAuditLog, "admin@org.com", audit.RequestMeta{}); err != nil {
		t.Fatalf("repeat revoke failed: %v", err)
	}
	if len(user.Permissions) != 0 {
		t.Fatalf("expected no overrides, got %v", user.Permissions)
	}
}

func TestTwoFactorLifecycle(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user := f.mustCreate(t, "totp@org.com", domain.RoleUser)

	setup, err := f.svc.EnableTwoFactor(ctx, user.Email, audit.RequestMeta{})
	if err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if setup.Secret == "" || setup.ProvisioningURI == "" {
		t.Fatalf("expected setup payload, got %+v", setup)
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		t.Fatalf("user record not updated")
	}
	if user.TwoFactorSecret == setup.Secret {
		t.Fatalf("secret stored in plaintext")
	}

	if err := f.svc.DisableTwoFactor(ctx, user.Email, audit.RequestMeta{}); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if user.TwoFactorEnabled || user.TwoFactorSecret != "" {
		t.Fatalf("disable must clear both the flag and the secret")
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	if err := f.svc.EnsureBootstrapAdmin(ctx, "root@org.com", "Password123"); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	admin, err := f.users.GetByEmail(ctx, "root@org.com")
	if err != nil {
		t.Fatalf("bootstrap admin missing: %v", err)
	}
	if admin.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", admin.Role)
	}

	// A second call with an admin present does nothing.
	if err := f.svc.EnsureBootstrapAdmin(ctx, "another@org.com", "Password123"); err != nil {
		t.Fatalf("second bootstrap errored: %v", err)
	}
	if _, err := f.users.GetByEmail(ctx, "another@org.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second bootstrap must not create a user")
	}
}
