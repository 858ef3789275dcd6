package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Client wraps the go-redis client. Redis holds only expiring state here
// (pending 2FA challenges), so losing it degrades logins to retry, never to
// data loss.
type Client struct {
	rdb *redis.Client
}

// NewClient connects using a redis:// URL and fails fast if the server is
// unreachable, so a misconfigured address surfaces at startup.
func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.ClientName = "draftmill"

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Raw exposes the underlying client for stores that need it.
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}

// Ping checks connectivity, for readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
