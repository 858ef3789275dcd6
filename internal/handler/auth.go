package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/draftmill/internal/security/middleware"
	"github.com/yourorg/draftmill/internal/service"
)

// AuthHandler handles login, 2FA verification, token refresh and logout.
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, users *service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login. Every credential failure looks the
// same to the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	switch result.Status {
	case service.LoginStatusRateLimited:
		writeError(w, http.StatusTooManyRequests, "too many attempts")
	case service.LoginStatusInvalid:
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		_ = writeJSON(w, http.StatusOK, result)
	}
}

type verify2FARequest struct {
	PendingID string `json:"pendingId"`
	Code      string `json:"code"`
}

// Verify2FA handles POST /api/auth/2fa.
func (h *AuthHandler) Verify2FA(w http.ResponseWriter, r *http.Request) {
	var req verify2FARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.PendingID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "pendingId and code required")
		return
	}

	result, err := h.auth.Verify2FA(r.Context(), req.PendingID, req.Code, requestMeta(r))
	if err != nil {
		h.logger.Error("2fa verification failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if result.Status != service.LoginStatusOK {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	_ = writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/auth/refresh. An access token presented here is
// rejected like any other invalid refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	accessToken, user, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": accessToken,
		"user":        user,
	})
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId required")
		return
	}

	if err := h.auth.Logout(r.Context(), req.SessionID, claims.Email, requestMeta(r)); err != nil {
		h.logger.Error("logout failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.users.ChangePassword(r.Context(), claims.Email, req.CurrentPassword, req.NewPassword, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me handles GET /api/auth/me, returning the claims of the presented token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{
		"email": claims.Email,
		"role":  claims.Role,
	})
}
