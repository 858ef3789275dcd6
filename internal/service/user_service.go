package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/security"
	"github.com/yourorg/draftmill/internal/security/audit"
	"github.com/yourorg/draftmill/internal/security/auth"
)

const minPasswordLength = 8

// TwoFactorSetupResult is returned once when 2FA is enabled; the plaintext
// secret is not retrievable afterwards.
type TwoFactorSetupResult struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

// UserService handles user management: creation, password changes, role and
// status edits, permission overrides and the 2FA lifecycle. Every
// structural mutation appends an audit entry.
type UserService struct {
	users      domain.UserRepository
	authorizer *security.Authorizer
	two        *auth.TwoFactor
	audit      *audit.Logger
	domain     string // allow-listed email domain
	logger     *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users domain.UserRepository,
	authorizer *security.Authorizer,
	two *auth.TwoFactor,
	auditLog *audit.Logger,
	allowedDomain string,
	logger *slog.Logger,
) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:      users,
		authorizer: authorizer,
		two:        two,
		audit:      auditLog,
		domain:     strings.ToLower(allowedDomain),
		logger:     logger,
	}
}

// CreateUser registers a new account. The email must belong to the
// allow-listed organization domain and not exist yet.
func (s *UserService) CreateUser(ctx context.Context, email, password, name, role, createdBy string, meta audit.RequestMeta) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !s.emailAllowed(email) {
		return nil, fmt.Errorf("%w: only %s email addresses are allowed", domain.ErrValidation, s.domain)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	if role == "" {
		role = domain.RoleUser
	}

	if existing, err := s.users.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: user already exists", domain.ErrValidation)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		Status:       domain.StatusActive,
		Permissions:  []string{},
		CreatedBy:    createdBy,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.audit.Log(ctx, email, domain.AuditUserCreated, map[string]string{
		"role":       role,
		"created_by": createdBy,
	}, meta)

	return user, nil
}

// VerifyPassword checks credentials without any side effects. Unknown users
// report false, not an error, so callers cannot leak account existence.
func (s *UserService) VerifyPassword(ctx context.Context, email, password string) bool {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// ChangePassword requires the current password and fails closed on any
// mismatch.
func (s *UserService) ChangePassword(ctx context.Context, email, currentPassword, newPassword string, meta audit.RequestMeta) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.audit.Log(ctx, email, domain.AuditPasswordChanged, nil, meta)
	return nil
}

// UpdateRole changes a user's role, refusing to demote the last admin.
func (s *UserService) UpdateRole(ctx context.Context, email, newRole, actor string, meta audit.RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.Role == domain.RoleAdmin && newRole != domain.RoleAdmin {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}

	oldRole := user.Role
	user.Role = newRole
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.authorizer.Invalidate(user.Email)

	s.audit.Log(ctx, email, domain.AuditUserRoleChanged, map[string]string{
		"from":  oldRole,
		"to":    newRole,
		"actor": actor,
	}, meta)
	return nil
}

// UpdateStatus enables or disables an account. Disabling the last active
// admin is rejected for the same reason deleting it is.
func (s *UserService) UpdateStatus(ctx context.Context, email, newStatus, actor string, meta audit.RequestMeta) error {
	if newStatus != domain.StatusActive && newStatus != domain.StatusDisabled {
		return fmt.Errorf("%w: unknown status %q", domain.ErrValidation, newStatus)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.Role == domain.RoleAdmin && user.Status == domain.StatusActive && newStatus == domain.StatusDisabled {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}

	oldStatus := user.Status
	user.Status = newStatus
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.audit.Log(ctx, email, domain.AuditUserStatusChanged, map[string]string{
		"from":  oldStatus,
		"to":    newStatus,
		"actor": actor,
	}, meta)
	return nil
}

// DeleteUser removes an account, subject to the last-admin invariant.
func (s *UserService) DeleteUser(ctx context.Context, email, actor string, meta audit.RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if user.Role == domain.RoleAdmin && user.Status == domain.StatusActive {
		if err := s.ensureNotLastAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.authorizer.Invalidate(user.Email)

	s.audit.Log(ctx, email, domain.AuditUserDeleted, map[string]string{"actor": actor}, meta)
	return nil
}

// GrantPermission adds an individual permission override. Granting an
// already-granted permission is a no-op success.
func (s *UserService) GrantPermission(ctx context.Context, email, permission, actor string, meta audit.RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	for _, p := range user.Permissions {
		if p == permission {
			return nil
		}
	}

	updated := append(append([]string{}, user.Permissions...), permission)
	if err := s.users.SetPermissions(ctx, user.ID, updated); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.authorizer.Invalidate(user.Email)

	s.audit.Log(ctx, email, domain.AuditPermissionChanged, map[string]string{
		"granted": permission,
		"actor":   actor,
	}, meta)
	return nil
}

// RevokePermission removes an individual permission override. Revoking an
// absent permission is a no-op success.
func (s *UserService) RevokePermission(ctx context.Context, email, permission, actor string, meta audit.RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	updated := make([]string, 0, len(user.Permissions))
	found := false
	for _, p := range user.Permissions {
		if p == permission {
			found = true
			continue
		}
		updated = append(updated, p)
	}
	if !found {
		return nil
	}

	if err := s.users.SetPermissions(ctx, user.ID, updated); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.authorizer.Invalidate(user.Email)

	s.audit.Log(ctx, email, domain.AuditPermissionChanged, map[string]string{
		"revoked": permission,
		"actor":   actor,
	}, meta)
	return nil
}

// EnableTwoFactor turns on TOTP for the user and returns the setup payload
// exactly once.
func (s *UserService) EnableTwoFactor(ctx context.Context, email string, meta audit.RequestMeta) (*TwoFactorSetupResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	setup, err := s.two.GenerateSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, true, setup.EncryptedSecret); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.audit.Log(ctx, email, domain.AuditTwoFactorEnabled, nil, meta)
	return &TwoFactorSetupResult{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
	}, nil
}

// DisableTwoFactor clears the flag and the stored secret in one update; a
// disabled account with a lingering secret would be a bug, not a state.
func (s *UserService) DisableTwoFactor(ctx context.Context, email string, meta audit.RequestMeta) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.users.SetTwoFactor(ctx, user.ID, false, ""); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.audit.Log(ctx, email, domain.AuditTwoFactorDisabled, nil, meta)
	return nil
}

// ListUsers returns all users for the admin view.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return users, nil
}

// EnsureBootstrapAdmin creates the initial admin account when no active
// admin exists, typically on first run against an empty database.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	count, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if count > 0 {
		return nil
	}

	_, err = s.CreateUser(ctx, email, password, "Admin User", domain.RoleAdmin, "system", audit.RequestMeta{})
	if err != nil {
		return err
	}
	s.logger.Info("created bootstrap admin user", slog.String("email", strings.ToLower(email)))
	return nil
}

func (s *UserService) ensureNotLastAdmin(ctx context.Context) error {
	count, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if count <= 1 {
		return domain.ErrLastAdmin
	}
	return nil
}

func (s *UserService) emailAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return email[at+1:] == s.domain
}
