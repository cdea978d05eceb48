//go:build integration

package revocation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"peoplehub/internal/auth/store/revocation"
	"peoplehub/pkg/testutil/containers"
)

type RedisListSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	trl   *revocation.RedisList
}

func TestRedisListSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisListSuite))
}

func (s *RedisListSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.trl = revocation.NewRedis(s.redis.Client)
}

func (s *RedisListSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisListSuite) TestRevokeAndExpire() {
	ctx := context.Background()
	s.Require().NoError(s.trl.RevokeToken(ctx, "jti-1", time.Second))

	revoked, err := s.trl.IsRevoked(ctx, "jti-1")
	s.Require().NoError(err)
	s.True(revoked)

	s.Eventually(func() bool {
		revoked, err := s.trl.IsRevoked(ctx, "jti-1")
		return err == nil && !revoked
	}, 5*time.Second, 100*time.Millisecond)
}
