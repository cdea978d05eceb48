package models

import (
	"sort"
	"strings"
	"time"

	id "peoplehub/pkg/domain"
)

// EmailLink asserts that an auth identity's email authenticates as a profile.
// IdentityID is unique across all links; each profile has exactly one primary.
type EmailLink struct {
	IdentityID id.IdentityID
	ProfileID  id.ProfileID
	Email      string
	IsPrimary  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SortOldestFirst orders links by creation time, breaking ties on identity id
// so promotion picks the same link on every run.
func SortOldestFirst(links []*EmailLink) {
	sort.SliceStable(links, func(i, j int) bool {
		if !links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].CreatedAt.Before(links[j].CreatedAt)
		}
		return links[i].IdentityID < links[j].IdentityID
	})
}

// Primaries returns the links flagged primary.
func Primaries(links []*EmailLink) []*EmailLink {
	var out []*EmailLink
	for _, l := range links {
		if l.IsPrimary {
			out = append(out, l)
		}
	}
	return out
}

// FindByEmail returns the first link whose email matches, ignoring case.
func FindByEmail(links []*EmailLink, email string) *EmailLink {
	for _, l := range links {
		if strings.EqualFold(l.Email, email) {
			return l
		}
	}
	return nil
}
