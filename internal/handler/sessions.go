package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/security/middleware"
	"github.com/yourorg/draftmill/internal/service"
)

type sessionView struct {
	ID           string            `json:"id"`
	Data         map[string]string `json:"data"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastAccessed time.Time         `json:"lastAccessed"`
}

// SessionsHandler lists the caller's active sessions.
type SessionsHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(auth *service.AuthService, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{auth: auth, logger: logger}
}

// List handles GET /api/sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sessions, err := h.auth.ActiveSessions(r.Context(), claims.Email)
	if err != nil {
		h.logger.Error("failed to list sessions", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, toSessionView(s))
	}
	_ = writeJSON(w, http.StatusOK, views)
}

func toSessionView(s *domain.Session) sessionView {
	data := s.Data
	if data == nil {
		data = map[string]string{}
	}
	return sessionView{
		ID:           s.ID,
		Data:         data,
		CreatedAt:    s.CreatedAt,
		LastAccessed: s.LastAccessed,
	}
}
