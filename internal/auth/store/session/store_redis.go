package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"peoplehub/internal/auth"
	"peoplehub/pkg/platform/sentinel"
)

const keyPrefix = "peoplehub:remember:"

// RedisStore keeps remembered sessions in Redis with a TTL, so they survive
// restarts of the agent.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, key string, session *auth.Session, ttl time.Duration) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("save remembered session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*auth.Session, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("remembered session %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("load remembered session: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("delete remembered session: %w", err)
	}
	return nil
}

var _ auth.SessionStore = (*RedisStore)(nil)
