// Package publisher implements audit.Publisher on top of an audit.Store, either
// synchronously or through a bounded in-process buffer.
package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	id "peoplehub/pkg/domain"
	audit "peoplehub/pkg/platform/audit"
)

var ErrBufferFull = errors.New("audit buffer full")

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListByProfile(ctx context.Context, profileID id.ProfileID) ([]audit.Event, error)
}

type Publisher struct {
	store  audit.Store
	logger *slog.Logger
	now    func() time.Time

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode. Emit enqueues and
// returns ErrBufferFull instead of blocking when the buffer is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit stamps the event's timestamp and category when unset, then stores it.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List reads events back when the underlying store supports it.
func (p *Publisher) List(ctx context.Context, profileID id.ProfileID) ([]audit.Event, error) {
	lister, ok := p.store.(Lister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return lister.ListByProfile(ctx, profileID)
}

// Close stops accepting events and drains the buffer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Warn("failed to persist audit event",
				"action", event.Action,
				"profile_id", event.ProfileID,
				"error", err,
			)
		}
	}
}
