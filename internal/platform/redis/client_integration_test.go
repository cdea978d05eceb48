//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"peoplehub/internal/platform/config"
	"peoplehub/internal/platform/redis"
	"peoplehub/pkg/testutil/containers"
)

func TestClientConnectsAndReportsHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := redis.New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 2})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Health(ctx))
}
