package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "peoplehub/pkg/domain"
	audit "peoplehub/pkg/platform/audit"
	txcontext "peoplehub/pkg/platform/tx"
)

// Store persists audit events to the audit_events table. Appends join a
// transaction present in the context, so a link mutation and its audit record
// commit together.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, profile_id, identity_id, action,
			email, reason, device, client_ip, request_id, actor_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		nullString(string(event.ProfileID)),
		nullString(string(event.IdentityID)),
		event.Action,
		event.Email,
		event.Reason,
		event.Device,
		event.ClientIP,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByProfile returns events for a profile, oldest first.
func (s *Store) ListByProfile(ctx context.Context, profileID id.ProfileID) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, profile_id, identity_id, action,
			   email, reason, device, client_ip, request_id, actor_id
		FROM audit_events
		WHERE profile_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(profileID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                 audit.Event
			category          string
			profile, identity sql.NullString
		)
		if err := rows.Scan(&category, &e.Timestamp, &profile, &identity, &e.Action,
			&e.Email, &e.Reason, &e.Device, &e.ClientIP, &e.RequestID, &e.ActorID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.ProfileID = id.ProfileID(profile.String)
		e.IdentityID = id.IdentityID(identity.String)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
