package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourorg/draftmill/internal/domain"
)

// PendingLogin is the intermediate state between a correct password and a
// correct TOTP code. It lives only in redis, keyed by an opaque correlation
// id, and expires on its TTL even if never completed.
type PendingLogin struct {
	UserID    string            `json:"user_id"`
	Email     string            `json:"email"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RedisPendingLoginStore stores pending 2FA challenges with TTL.
type RedisPendingLoginStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisPendingLoginStore creates the pending login store.
func NewRedisPendingLoginStore(rdb redis.UniversalClient, ttl time.Duration) *RedisPendingLoginStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPendingLoginStore{rdb: rdb, prefix: "pending2fa", ttl: ttl}
}

func (s *RedisPendingLoginStore) key(id string) string {
	return s.prefix + ":" + id
}

// Save stores the challenge under the correlation id with the store's TTL.
func (s *RedisPendingLoginStore) Save(ctx context.Context, id string, pending *PendingLogin) error {
	encoded, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending login: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(id), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// Get loads the challenge. Expired or unknown ids return ErrNotFound.
func (s *RedisPendingLoginStore) Get(ctx context.Context, id string) (*PendingLogin, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	pending := &PendingLogin{}
	if err := json.Unmarshal(data, pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending login: %w", err)
	}
	return pending, nil
}

// Consume atomically removes the challenge, making it single-use. Returns
// ErrNotFound when it was already consumed or expired.
func (s *RedisPendingLoginStore) Consume(ctx context.Context, id string) (*PendingLogin, error) {
	data, err := s.rdb.GetDel(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	pending := &PendingLogin{}
	if err := json.Unmarshal(data, pending); err != nil {
		return nil, fmt.Errorf("failed to decode pending login: %w", err)
	}
	return pending, nil
}

// Delete discards a challenge without reading it.
func (s *RedisPendingLoginStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}
