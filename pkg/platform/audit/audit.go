// Package audit records security and compliance relevant actions of the
// session core. Services emit through Publisher; Store implementations decide
// where events land (log, PostgreSQL, Kafka).
package audit

import "context"

// Publisher is the port services depend on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists a single event.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
