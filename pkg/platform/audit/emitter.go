package audit

import (
	"context"
	"io"
	"log/slog"

	"peoplehub/pkg/requestcontext"
)

// Emitter enriches events with request metadata and publishes them. Audit
// failures are logged and never fail the operation being audited.
type Emitter struct {
	logger    *slog.Logger
	publisher Publisher
}

func NewEmitter(logger *slog.Logger, publisher Publisher) *Emitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if publisher == nil {
		publisher = Nop{}
	}
	return &Emitter{logger: logger, publisher: publisher}
}

func (e *Emitter) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Actor(ctx)
	}
	if err := e.publisher.Emit(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"profile_id", event.ProfileID,
			"error", err,
		)
	}
}
