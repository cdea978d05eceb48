package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryList is a process-local revocation list.
type InMemoryList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   Clock
}

func NewInMemory(clock Clock) *InMemoryList {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryList{revoked: make(map[string]time.Time), clock: clock}
}

func (t *InMemoryList) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = t.clock().Add(ttl)
	return nil
}

func (t *InMemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	expiresAt, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	if !t.clock().Before(expiresAt) {
		delete(t.revoked, jti)
		return false, nil
	}
	return true, nil
}
