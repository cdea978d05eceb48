//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer is a disposable Redis holding remember-me sessions and
// revoked token ids during integration tests.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis")

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "parse redis url %q", url)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err(), "ping redis")
	return &RedisContainer{Container: container, URL: url, Client: client}
}

// FlushAll clears every key so suites start from an empty keyspace.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
