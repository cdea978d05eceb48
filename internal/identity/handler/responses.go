package handler

import (
	"time"

	"peoplehub/internal/identity/models"
)

type LinkResponse struct {
	IdentityID string    `json:"identity_id"`
	ProfileID  string    `json:"profile_id"`
	Email      string    `json:"email"`
	IsPrimary  bool      `json:"is_primary"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type LinksResponse struct {
	ProfileID string          `json:"profile_id"`
	Emails    []*LinkResponse `json:"emails"`
}

type RepairResponse struct {
	Repaired int `json:"repaired"`
}

func FromLink(l *models.EmailLink) *LinkResponse {
	return &LinkResponse{
		IdentityID: string(l.IdentityID),
		ProfileID:  string(l.ProfileID),
		Email:      l.Email,
		IsPrimary:  l.IsPrimary,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}
