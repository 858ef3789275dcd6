package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/draftmill/internal/domain"
)

// Limiter throttles authentication attempts with a fixed trailing window
// over persisted per-attempt records. Configuration is process-wide, not
// per-key. Every attempt is recorded, including attempts rejected for being
// over the limit, so retrying faster than cleanup cannot bypass the cap.
type Limiter struct {
	records     domain.RateLimitRepository
	maxRequests int
	window      time.Duration
	logger      *slog.Logger
}

// NewLimiter creates a limiter counting at most maxRequests per window.
func NewLimiter(records domain.RateLimitRepository, maxRequests int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		records:     records,
		maxRequests: maxRequests,
		window:      window,
		logger:      logger,
	}
}

// IsLimited reports whether the key has reached the attempt budget within
// the trailing window. Storage faults fail open: login availability is
// preferred over throttling precision, and the failure is logged.
func (l *Limiter) IsLimited(ctx context.Context, key string) bool {
	since := time.Now().UTC().Add(-l.window)
	count, err := l.records.CountSince(ctx, key, since)
	if err != nil {
		l.logger.Error("rate limit check failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return false
	}
	return count >= l.maxRequests
}

// RecordAttempt inserts one attempt record for the key. Called exactly once
// per real attempt, before the outcome is known.
func (l *Limiter) RecordAttempt(ctx context.Context, key string) error {
	if err := l.records.Record(ctx, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// Cleanup deletes records older than the window. Pure storage hygiene: the
// limit check never depends on old rows being gone.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-l.window)
	deleted, err := l.records.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rate limit records: %w", err)
	}
	return deleted, nil
}
