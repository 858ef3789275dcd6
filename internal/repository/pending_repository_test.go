package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/draftmill/internal/domain"
)

func newPendingStore(t *testing.T, ttl time.Duration) (*RedisPendingLoginStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisPendingLoginStore(rdb, ttl), mr
}

func TestPendingLoginSaveGetConsume(t *testing.T) {
	store, _ := newPendingStore(t, time.Minute)
	ctx := context.Background()

	pending := &PendingLogin{
		UserID:    "u1",
		Email:     "writer@org.com",
		Meta:      map[string]string{"ip": "10.0.0.1"},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Save(ctx, "challenge-1", pending); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Get does not consume; a wrong 2FA code must not burn the challenge.
	for i := 0; i < 2; i++ {
		got, err := store.Get(ctx, "challenge-1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got.Email != "writer@org.com" || got.Meta["ip"] != "10.0.0.1" {
			t.Fatalf("unexpected payload %+v", got)
		}
	}

	got, err := store.Consume(ctx, "challenge-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("unexpected payload %+v", got)
	}

	// Consumed challenges are gone for both readers.
	if _, err := store.Consume(ctx, "challenge-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second consume, got %v", err)
	}
	if _, err := store.Get(ctx, "challenge-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after consume, got %v", err)
	}
}

func TestPendingLoginUnknownID(t *testing.T) {
	store, _ := newPendingStore(t, time.Minute)
	ctx := context.Background()

	if _, err := store.Get(ctx, "never-saved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Consume(ctx, "never-saved"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPendingLoginExpiry(t *testing.T) {
	store, mr := newPendingStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, "challenge-1", &PendingLogin{Email: "writer@org.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "challenge-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expiry to surface as not found, got %v", err)
	}
}

func TestPendingLoginDelete(t *testing.T) {
	store, _ := newPendingStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, "challenge-1", &PendingLogin{Email: "writer@org.com"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "challenge-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "challenge-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	// Deleting an absent id is a no-op.
	if err := store.Delete(ctx, "challenge-1"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}
