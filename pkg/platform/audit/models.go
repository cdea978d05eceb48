package audit

import (
	"time"

	id "peoplehub/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategorySecurity covers sign-in activity and forced sign-outs.
	CategorySecurity EventCategory = "security"
	// CategoryCompliance covers changes to who can access a profile.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	ProfileID  id.ProfileID
	IdentityID id.IdentityID
	Action     string
	Email      string
	Reason     string
	// Device is a display name derived from the User-Agent ("Chrome on macOS").
	Device    string
	ClientIP  string
	RequestID string
	// ActorID names who performed an administrative action when it differs
	// from the affected profile ("cli", "admin-api").
	ActorID string
}

type AuditEvent string

const (
	// Session events
	EventSignedIn               AuditEvent = "session_signed_in"
	EventSignInFailed           AuditEvent = "session_sign_in_failed"
	EventSignedOut              AuditEvent = "session_signed_out"
	EventForcedSignOut          AuditEvent = "session_forced_sign_out"
	EventSessionRefreshed       AuditEvent = "session_refreshed"
	EventPasswordResetRequested AuditEvent = "password_reset_requested"
	EventPasswordChanged        AuditEvent = "password_changed"

	// Profile events
	EventProfileProvisioned AuditEvent = "profile_provisioned"

	// Email link events
	EventEmailLinked         AuditEvent = "email_linked"
	EventEmailUnlinked       AuditEvent = "email_unlinked"
	EventPrimaryEmailChanged AuditEvent = "primary_email_changed"
	EventLinksRepaired       AuditEvent = "email_links_repaired"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSignedIn:               CategorySecurity,
	EventSignInFailed:           CategorySecurity,
	EventSignedOut:              CategorySecurity,
	EventForcedSignOut:          CategorySecurity,
	EventPasswordResetRequested: CategorySecurity,
	EventPasswordChanged:        CategorySecurity,

	EventProfileProvisioned:  CategoryCompliance,
	EventEmailLinked:         CategoryCompliance,
	EventEmailUnlinked:       CategoryCompliance,
	EventPrimaryEmailChanged: CategoryCompliance,
	EventLinksRepaired:       CategoryCompliance,

	EventSessionRefreshed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
