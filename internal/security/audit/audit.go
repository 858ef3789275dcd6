package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/draftmill/internal/domain"
)

// RequestMeta carries caller attribution for audit rows.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Logger appends security-relevant events to the audit collection and
// mirrors them to the structured log. Audit writes are best effort: a
// storage failure is logged but never fails the parent operation.
type Logger struct {
	repo   domain.AuditRepository
	logger *slog.Logger
}

// NewLogger creates the audit logger.
func NewLogger(repo domain.AuditRepository, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, logger: logger}
}

// Log records one audit event.
func (al *Logger) Log(ctx context.Context, userEmail, action string, details map[string]string, meta RequestMeta) {
	entry := &domain.AuditEntry{
		UserEmail: userEmail,
		Action:    action,
		Details:   details,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Timestamp: time.Now().UTC(),
	}

	if err := al.repo.Append(ctx, entry); err != nil {
		al.logger.Error("failed to append audit entry",
			slog.String("action", action),
			slog.String("user_email", userEmail),
			slog.String("error", err.Error()),
		)
	}

	attrs := []any{
		slog.String("action", action),
		slog.String("user_email", userEmail),
		slog.Time("timestamp", entry.Timestamp),
	}
	if meta.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", meta.IPAddress))
	}
	for k, v := range details {
		attrs = append(attrs, slog.String(k, v))
	}
	al.logger.Info("audit", attrs...)
}
