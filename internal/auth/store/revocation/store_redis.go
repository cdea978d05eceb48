package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "peoplehub:revoked:"

// RedisList shares revocations across agent instances. Redis expiry removes
// entries once the token could no longer be presented.
type RedisList struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisList {
	return &RedisList{client: client}
}

func (t *RedisList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	return t.client.Set(ctx, keyPrefix+jti, "1", ttl).Err()
}

func (t *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := t.client.Get(ctx, keyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
