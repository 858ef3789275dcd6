package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/observability/metrics"
	"github.com/yourorg/draftmill/internal/repository"
	"github.com/yourorg/draftmill/internal/security/audit"
	"github.com/yourorg/draftmill/internal/security/auth"
	"github.com/yourorg/draftmill/internal/security/ratelimit"
)

// Login outcome statuses.
const (
	LoginStatusOK          = "ok"
	LoginStatusNeeds2FA    = "needs_2fa"
	LoginStatusInvalid     = "invalid"
	LoginStatusRateLimited = "rate_limited"
)

// UserInfo is the externally safe view of a user. The password hash never
// appears here.
type UserInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// LoginResult is the tagged outcome of a login attempt.
type LoginResult struct {
	Status       string    `json:"status"`
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	SessionID    string    `json:"sessionId,omitempty"`
	PendingID    string    `json:"pendingId,omitempty"`
	User         *UserInfo `json:"user,omitempty"`
}

// AuthService orchestrates the login pipeline. The step order is fixed:
// rate limit, account status, password, 2FA, token issuance, session,
// audit — each step may short-circuit before the more sensitive one runs.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	pending  *repository.RedisPendingLoginStore
	tokens   *auth.TokenManager
	two      *auth.TwoFactor
	limiter  *ratelimit.Limiter
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	pending *repository.RedisPendingLoginStore,
	tokens *auth.TokenManager,
	two *auth.TwoFactor,
	limiter *ratelimit.Limiter,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		pending:  pending,
		tokens:   tokens,
		two:      two,
		limiter:  limiter,
		audit:    auditLog,
		logger:   logger,
	}
}

// Login authenticates email+password. Expected outcomes (wrong password,
// unknown user, throttled, 2FA pending) are statuses, not errors; an error
// return means infrastructure failed.
func (s *AuthService) Login(ctx context.Context, email, password string, meta audit.RequestMeta) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return &LoginResult{Status: LoginStatusInvalid}, nil
	}

	// Throttle check first, then record: a rejected attempt still counts,
	// so hammering the endpoint never outruns the window.
	if s.limiter.IsLimited(ctx, email) {
		if err := s.limiter.RecordAttempt(ctx, email); err != nil {
			s.logger.Error("failed to record login attempt", slog.String("error", err.Error()))
		}
		s.audit.Log(ctx, email, domain.AuditLoginRateLimited, nil, meta)
		metrics.ObserveLogin("rate_limited")
		return &LoginResult{Status: LoginStatusRateLimited}, nil
	}
	if err := s.limiter.RecordAttempt(ctx, email); err != nil {
		s.logger.Error("failed to record login attempt", slog.String("error", err.Error()))
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Indistinguishable from a wrong password to the caller.
			s.audit.Log(ctx, email, domain.AuditLoginFailed, map[string]string{"reason": "unknown_user"}, meta)
			metrics.ObserveLogin("invalid")
			return &LoginResult{Status: LoginStatusInvalid}, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	// Disabled accounts short-circuit before password verification and do
	// not touch the failure counter.
	if !user.Active() {
		s.audit.Log(ctx, email, domain.AuditLoginFailed, map[string]string{"reason": "account_disabled"}, meta)
		metrics.ObserveLogin("invalid")
		return &LoginResult{Status: LoginStatusInvalid}, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err := s.users.RecordLoginFailure(ctx, user.ID, time.Now().UTC()); err != nil {
			s.logger.Error("failed to record login failure", slog.String("error", err.Error()))
		}
		s.audit.Log(ctx, email, domain.AuditLoginFailed, map[string]string{"reason": "wrong_password"}, meta)
		metrics.ObserveLogin("invalid")
		return &LoginResult{Status: LoginStatusInvalid}, nil
	}

	if user.TwoFactorEnabled {
		pendingID := uuid.NewString()
		err := s.pending.Save(ctx, pendingID, &repository.PendingLogin{
			UserID:    user.ID,
			Email:     user.Email,
			Meta:      map[string]string{"ip": meta.IPAddress, "user_agent": meta.UserAgent},
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		metrics.ObserveLogin("needs_2fa")
		return &LoginResult{Status: LoginStatusNeeds2FA, PendingID: pendingID}, nil
	}

	return s.completeLogin(ctx, user, meta)
}

// Verify2FA completes a pending login with a TOTP code. The pending id is
// single-use: it survives wrong codes until its TTL, but is consumed by the
// first correct one.
func (s *AuthService) Verify2FA(ctx context.Context, pendingID, code string, meta audit.RequestMeta) (*LoginResult, error) {
	pending, err := s.pending.Get(ctx, pendingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ObserveTwoFactor("expired")
			return &LoginResult{Status: LoginStatusInvalid}, nil
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, pending.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &LoginResult{Status: LoginStatusInvalid}, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if !user.Active() || !user.TwoFactorEnabled {
		return &LoginResult{Status: LoginStatusInvalid}, nil
	}

	ok, err := s.two.VerifyCode(user.TwoFactorSecret, code)
	if err != nil {
		s.logger.Error("totp verification error",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if !ok {
		s.audit.Log(ctx, user.Email, domain.AuditTwoFactorFailed, nil, meta)
		metrics.ObserveTwoFactor("invalid")
		return &LoginResult{Status: LoginStatusInvalid}, nil
	}

	// GetDel guarantees at most one success per challenge.
	if _, err := s.pending.Consume(ctx, pendingID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &LoginResult{Status: LoginStatusInvalid}, nil
		}
		return nil, err
	}

	metrics.ObserveTwoFactor("ok")
	return s.completeLogin(ctx, user, meta)
}

// completeLogin mints tokens, opens a session and records the success.
func (s *AuthService) completeLogin(ctx context.Context, user *domain.User, meta audit.RequestMeta) (*LoginResult, error) {
	accessToken, err := s.tokens.IssueAccessToken(user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	session := &domain.Session{
		UserEmail: user.Email,
		Data:      map[string]string{"ip": meta.IPAddress, "user_agent": meta.UserAgent},
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Error("failed to record login success", slog.String("error", err.Error()))
	}

	s.audit.Log(ctx, user.Email, domain.AuditLoginSuccess, map[string]string{"session_id": session.ID}, meta)
	metrics.ObserveLogin("ok")
	metrics.IncActiveSessions()

	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &LoginResult{
		Status:       LoginStatusOK,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    session.ID,
		User:         &UserInfo{Email: user.Email, Name: user.Name, Role: user.Role},
	}, nil
}

// VerifyAccessToken validates a bearer token. Every failure is uniform to
// the caller; the reason lands in the debug log only.
func (s *AuthService) VerifyAccessToken(token string) *auth.Claims {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		s.logger.Debug("access token rejected", slog.String("reason", err.Error()))
		metrics.ObserveTokenVerification("rejected")
		return nil
	}
	metrics.ObserveTokenVerification("ok")
	return claims
}

// Refresh mints a new access token from a refresh token. The user record is
// re-fetched so the new token reflects the current role, not the claim
// frozen into the refresh token at issue time.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, *UserInfo, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.logger.Debug("refresh token rejected", slog.String("reason", err.Error()))
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if !user.Active() {
		return "", nil, domain.ErrInvalidCredentials
	}

	accessToken, err := s.tokens.IssueAccessToken(user.Email, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	return accessToken, &UserInfo{Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

// Logout ends the session. Unknown or already-ended sessions succeed
// silently; the gauge only moves when this call actually ended one.
func (s *AuthService) Logout(ctx context.Context, sessionID, userEmail string, meta audit.RequestMeta) error {
	ended, err := s.sessions.End(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.audit.Log(ctx, userEmail, domain.AuditLogout, map[string]string{"session_id": sessionID}, meta)
	if ended {
		metrics.DecActiveSessions()
	}
	return nil
}

// ActiveSessions lists the user's currently active sessions.
func (s *AuthService) ActiveSessions(ctx context.Context, email string) ([]*domain.Session, error) {
	sessions, err := s.sessions.ListActiveByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return sessions, nil
}

// TouchSession bumps last_accessed; used by the middleware on
// authenticated activity. Failures are logged, not surfaced.
func (s *AuthService) TouchSession(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.Touch(ctx, sessionID, time.Now().UTC()); err != nil {
		s.logger.Debug("failed to touch session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}
