package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/observability/metrics"
	"github.com/yourorg/draftmill/internal/security/ratelimit"
)

// CleanupWorker periodically sweeps idle sessions and expired rate-limit
// rows. Both sweeps are idempotent; a missed tick just means the next one
// does more work.
type CleanupWorker struct {
	sessions       domain.SessionRepository
	limiter        *ratelimit.Limiter
	logger         *slog.Logger
	interval       time.Duration
	sessionIdleTTL time.Duration
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(
	sessions domain.SessionRepository,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
	interval time.Duration,
	sessionIdleTTL time.Duration,
) *CleanupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupWorker{
		sessions:       sessions,
		limiter:        limiter,
		logger:         logger,
		interval:       interval,
		sessionIdleTTL: sessionIdleTTL,
	}
}

// Start begins the cleanup loop. Blocks until the context is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("cleanup worker started",
		slog.Duration("interval", w.interval),
		slog.Duration("session_idle_ttl", w.sessionIdleTTL),
	)

	// Seed the gauge from storage so sessions opened before a restart are
	// counted from the first request on.
	w.reconcileSessionsGauge(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.sweepIdleSessions(ctx)
			w.sweepRateLimitRows(ctx)
		}
	}
}

// sweepIdleSessions deactivates sessions with no activity inside the idle
// window.
func (w *CleanupWorker) sweepIdleSessions(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.sessionIdleTTL)

	swept, err := w.sessions.DeactivateIdle(ctx, cutoff)
	if err != nil {
		w.logger.Error("idle session sweep failed", slog.String("error", err.Error()))
		metrics.ObserveCleanup("sessions", "error")
		return
	}

	if swept > 0 {
		w.logger.Info("deactivated idle sessions", slog.Int("count", swept))
	}
	w.reconcileSessionsGauge(ctx)
	metrics.ObserveCleanup("sessions", "success")
}

// reconcileSessionsGauge resets the active-sessions gauge from storage.
// Per-login increments and per-logout decrements keep it responsive between
// sweeps; the periodic count is the authority, so the gauge can never drift
// (negative or otherwise) past one sweep interval.
func (w *CleanupWorker) reconcileSessionsGauge(ctx context.Context) {
	count, err := w.sessions.CountActive(ctx)
	if err != nil {
		w.logger.Warn("failed to count active sessions", slog.String("error", err.Error()))
		return
	}
	metrics.SetActiveSessions(count)
}

// sweepRateLimitRows deletes attempt rows too old to affect any window.
func (w *CleanupWorker) sweepRateLimitRows(ctx context.Context) {
	deleted, err := w.limiter.Cleanup(ctx)
	if err != nil {
		w.logger.Error("rate limit sweep failed", slog.String("error", err.Error()))
		metrics.ObserveCleanup("rate_limits", "error")
		return
	}

	if deleted > 0 {
		w.logger.Debug("deleted expired rate limit rows", slog.Int("count", deleted))
	}
	metrics.ObserveCleanup("rate_limits", "success")
}
