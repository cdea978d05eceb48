package models

import "time"

// Lockout counts failed sign-ins against one email address within a window.
type Lockout struct {
	Identifier    string
	FailureCount  int
	WindowStart   time.Time
	LastFailureAt time.Time
	LockedUntil   *time.Time
}

// IsLockedAt reports whether sign-in is refused at now.
func (l *Lockout) IsLockedAt(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}

// RegisterFailure counts a failed attempt, starting a new window when the
// previous one has passed.
func (l *Lockout) RegisterFailure(now time.Time, window time.Duration) {
	if l.FailureCount == 0 || now.Sub(l.WindowStart) >= window {
		l.FailureCount = 0
		l.WindowStart = now
		l.LockedUntil = nil
	}
	l.FailureCount++
	l.LastFailureAt = now
}

// ShouldLock reports whether the attempts in the current window reach limit.
func (l *Lockout) ShouldLock(limit int) bool {
	return limit > 0 && l.FailureCount >= limit
}

func (l *Lockout) Lock(now time.Time, d time.Duration) {
	until := now.Add(d)
	l.LockedUntil = &until
}
