package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Minute)

	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("got %q, %v", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("missing key must not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := New[int]()
	c.Set("k", 42, -time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry must not be returned")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be dropped on read")
	}
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("k", "v", time.Minute)
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Fatalf("deleted key must not be found")
	}
	// Deleting an absent key is fine.
	c.Delete("missing")
}

func TestInvalidatePrefix(t *testing.T) {
	c := New[string]()
	c.Set("perm:a@org.com", "x", time.Minute)
	c.Set("perm:b@org.com", "y", time.Minute)
	c.Set("other", "z", time.Minute)

	c.InvalidatePrefix("perm:")

	if _, ok := c.Get("perm:a@org.com"); ok {
		t.Fatalf("prefixed key survived invalidation")
	}
	if _, ok := c.Get("other"); !ok {
		t.Fatalf("unrelated key was invalidated")
	}
}

func TestPurge(t *testing.T) {
	c := New[string]()
	c.Set("fresh", "v", time.Minute)
	c.Set("stale1", "v", -time.Second)
	c.Set("stale2", "v", -time.Second)

	if dropped := c.Purge(); dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", dropped)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
}
