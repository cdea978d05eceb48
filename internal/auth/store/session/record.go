// Package session persists the signed-in session for "remember me". Only the
// credentials and the identity are kept; the profile is always reloaded.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"peoplehub/internal/auth"
	id "peoplehub/pkg/domain"
)

type record struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	IdentityID   string         `json:"identity_id"`
	Email        string         `json:"email"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func encode(s *auth.Session) ([]byte, error) {
	b, err := json.Marshal(record{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		IdentityID:   string(s.Identity.ID),
		Email:        s.Identity.Email,
		Metadata:     s.Identity.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*auth.Session, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &auth.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		Identity: auth.RawIdentity{
			ID:       id.IdentityID(r.IdentityID),
			Email:    r.Email,
			Metadata: r.Metadata,
		},
	}, nil
}
