package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/security/audit"
)

// writeJSON encodes v with the given status. Encoding failures can only be
// logged by the caller; by then the status line is already gone.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Validation
// messages are surfaced verbatim; everything else gets a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, domain.ErrLastAdmin):
		writeError(w, http.StatusConflict, "cannot remove the last active admin")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "too many attempts")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requestMeta extracts caller attribution for audit rows. X-Forwarded-For
// wins over RemoteAddr when a proxy sits in front.
func requestMeta(r *http.Request) audit.RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.IndexByte(ip, ','); idx > 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}
	return audit.RequestMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
