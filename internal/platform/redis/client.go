// Package redis opens the shared go-redis client used for remember-me
// sessions and token revocation.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"peoplehub/internal/platform/config"
	dErrors "peoplehub/pkg/domain-errors"
)

const healthTimeout = 2 * time.Second

type Client struct {
	*redis.Client
}

// New connects using cfg. An empty URL means Redis is not configured and
// yields a nil client; callers fall back to in-memory stores.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid redis.url")
	}
	applyPoolSettings(opts, cfg)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{Client: client}, nil
}

// applyPoolSettings overrides the URL's options with any non-zero setting.
func applyPoolSettings(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	for _, d := range []struct {
		dst *time.Duration
		v   time.Duration
	}{
		{&opts.DialTimeout, cfg.DialTimeout},
		{&opts.ReadTimeout, cfg.ReadTimeout},
		{&opts.WriteTimeout, cfg.WriteTimeout},
	} {
		if d.v > 0 {
			*d.dst = d.v
		}
	}
}

// Health pings Redis for /healthz, bounded by a short timeout.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.Ping(ctx).Err()
}
