// Package logsink writes audit events to a structured logger. It is the default
// sink when neither PostgreSQL nor Kafka is configured.
package logsink

import (
	"context"
	"log/slog"

	audit "peoplehub/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	attrs := []any{
		"category", string(event.Category),
		"action", event.Action,
		"occurred_at", event.Timestamp,
	}
	if !event.ProfileID.IsZero() {
		attrs = append(attrs, "profile_id", event.ProfileID.String())
	}
	if !event.IdentityID.IsZero() {
		attrs = append(attrs, "identity_id", event.IdentityID.String())
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if event.Device != "" {
		attrs = append(attrs, "device", event.Device)
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	if event.ActorID != "" {
		attrs = append(attrs, "actor_id", event.ActorID)
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}
