package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memRecords struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	failing  bool
}

func newMemRecords() *memRecords {
	return &memRecords{attempts: map[string][]time.Time{}}
}

func (m *memRecords) CountSince(_ context.Context, key string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, errors.New("storage down")
	}
	count := 0
	for _, at := range m.attempts[key] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memRecords) Record(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("storage down")
	}
	m.attempts[key] = append(m.attempts[key], at)
	return nil
}

func (m *memRecords) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, times := range m.attempts {
		kept := times[:0]
		for _, at := range times {
			if at.Before(cutoff) {
				deleted++
			} else {
				kept = append(kept, at)
			}
		}
		m.attempts[key] = kept
	}
	return deleted, nil
}

func TestLimiterBoundary(t *testing.T) {
	records := newMemRecords()
	limiter := NewLimiter(records, 3, 15*time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if limiter.IsLimited(ctx, "user@org.com") {
			t.Fatalf("limited after %d attempts, budget is 3", i)
		}
		if err := limiter.RecordAttempt(ctx, "user@org.com"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if !limiter.IsLimited(ctx, "user@org.com") {
		t.Fatalf("expected limit at exactly maxRequests attempts")
	}

	// Keys are independent.
	if limiter.IsLimited(ctx, "other@org.com") {
		t.Fatalf("unrelated key limited")
	}
}

func TestLimiterWindowExpiry(t *testing.T) {
	records := newMemRecords()
	limiter := NewLimiter(records, 2, 15*time.Minute, nil)
	ctx := context.Background()

	// Two old attempts outside the window plus one fresh inside it.
	old := time.Now().UTC().Add(-16 * time.Minute)
	records.attempts["user@org.com"] = []time.Time{old, old}
	if err := limiter.RecordAttempt(ctx, "user@org.com"); err != nil {
		t.Fatalf("record: %v", err)
	}

	if limiter.IsLimited(ctx, "user@org.com") {
		t.Fatalf("attempts outside the window must not count")
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	records := newMemRecords()
	limiter := NewLimiter(records, 1, 15*time.Minute, nil)
	ctx := context.Background()

	if err := limiter.RecordAttempt(ctx, "user@org.com"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !limiter.IsLimited(ctx, "user@org.com") {
		t.Fatalf("expected limit before outage")
	}

	records.failing = true
	if limiter.IsLimited(ctx, "user@org.com") {
		t.Fatalf("storage failure must fail open")
	}
	if err := limiter.RecordAttempt(ctx, "user@org.com"); err == nil {
		t.Fatalf("record should surface the storage error")
	}
}

func TestLimiterCleanup(t *testing.T) {
	records := newMemRecords()
	limiter := NewLimiter(records, 5, 15*time.Minute, nil)
	ctx := context.Background()

	old := time.Now().UTC().Add(-time.Hour)
	records.attempts["a"] = []time.Time{old, old}
	records.attempts["b"] = []time.Time{old, time.Now().UTC()}

	deleted, err := limiter.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 stale rows deleted, got %d", deleted)
	}
	if len(records.attempts["b"]) != 1 {
		t.Fatalf("fresh row must survive cleanup")
	}
}
