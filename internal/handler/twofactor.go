package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/draftmill/internal/security/middleware"
	"github.com/yourorg/draftmill/internal/service"
)

// TwoFactorHandler manages the user's own TOTP enrollment.
type TwoFactorHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewTwoFactorHandler creates a new 2FA handler
func NewTwoFactorHandler(users *service.UserService, logger *slog.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{users: users, logger: logger}
}

// Enable handles POST /api/auth/2fa/enable. The secret and provisioning URI
// are returned once; afterwards only the encrypted form exists.
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	setup, err := h.users.EnableTwoFactor(r.Context(), claims.Email, requestMeta(r))
	if err != nil {
		h.logger.Error("failed to enable 2fa",
			slog.String("email", claims.Email),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, setup)
}

// Disable handles POST /api/auth/2fa/disable.
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.users.DisableTwoFactor(r.Context(), claims.Email, requestMeta(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
