package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/draftmill/internal/domain"
)

const defaultAuditLimit = 100

// AuditHandler exposes the audit log to holders of view:audit_log.
type AuditHandler struct {
	audit  domain.AuditRepository
	logger *slog.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditRepo domain.AuditRepository, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: auditRepo, logger: logger}
}

// List handles GET /api/audit?email=&limit=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	var (
		entries []*domain.AuditEntry
		err     error
	)
	if email := r.URL.Query().Get("email"); email != "" {
		entries, err = h.audit.ListByEmail(r.Context(), email, limit)
	} else {
		entries, err = h.audit.ListRecent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("failed to query audit log", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	_ = writeJSON(w, http.StatusOK, entries)
}
