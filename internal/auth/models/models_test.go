package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"peoplehub/pkg/platform/sentinel"
)

func TestTokenRecord_ValidateForConsume(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fresh := &TokenRecord{Kind: TokenRefresh, ExpiresAt: now.Add(time.Minute)}
	assert.NoError(t, fresh.ValidateForConsume(now))

	expired := &TokenRecord{Kind: TokenRefresh, ExpiresAt: now}
	assert.ErrorIs(t, expired.ValidateForConsume(now), sentinel.ErrExpired)

	fresh.MarkUsed(now)
	assert.ErrorIs(t, fresh.ValidateForConsume(now), sentinel.ErrAlreadyUsed)
	assert.Equal(t, now, *fresh.UsedAt)
}

func TestLockoutWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := &Lockout{Identifier: "jane@example.com"}

	for i := 0; i < 3; i++ {
		l.RegisterFailure(start.Add(time.Duration(i)*time.Minute), 15*time.Minute)
	}
	assert.Equal(t, 3, l.FailureCount)
	assert.True(t, l.ShouldLock(3))
	assert.False(t, l.ShouldLock(0), "a zero limit never locks")

	l.Lock(start, 15*time.Minute)
	assert.True(t, l.IsLockedAt(start.Add(14*time.Minute)))
	assert.False(t, l.IsLockedAt(start.Add(15*time.Minute)))

	l.RegisterFailure(start.Add(20*time.Minute), 15*time.Minute)
	assert.Equal(t, 1, l.FailureCount, "a new window starts the count over")
	assert.Nil(t, l.LockedUntil)
}
