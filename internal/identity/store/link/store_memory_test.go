package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"peoplehub/internal/identity/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) link(identity, profile, email string, primary bool, offset time.Duration) *models.EmailLink {
	return &models.EmailLink{
		IdentityID: id.IdentityID(identity),
		ProfileID:  id.ProfileID(profile),
		Email:      email,
		IsPrimary:  primary,
		CreatedAt:  s.base.Add(offset),
		UpdatedAt:  s.base.Add(offset),
	}
}

func (s *InMemoryStoreSuite) TestFindByIdentity() {
	s.Run("missing link is not found", func() {
		_, err := s.store.FindByIdentity(s.ctx, "raw-404")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns a copy", func() {
		s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-1", "P1", "a@x.com", true, 0)))
		got, err := s.store.FindByIdentity(s.ctx, "raw-1")
		s.Require().NoError(err)
		got.IsPrimary = false

		again, err := s.store.FindByIdentity(s.ctx, "raw-1")
		s.Require().NoError(err)
		s.True(again.IsPrimary, "mutating a returned link must not affect the store")
	})
}

func (s *InMemoryStoreSuite) TestUpsertPreservesCreatedAt() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-1", "P1", "a@x.com", true, 0)))
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-1", "P1", "a@x.com", false, time.Hour)))

	got, err := s.store.FindByIdentity(s.ctx, "raw-1")
	s.Require().NoError(err)
	s.Equal(s.base, got.CreatedAt)
	s.Equal(s.base.Add(time.Hour), got.UpdatedAt)
	s.False(got.IsPrimary)
}

func (s *InMemoryStoreSuite) TestListByProfileOldestFirst() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-2", "P1", "b@x.com", false, time.Hour)))
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-1", "P1", "a@x.com", true, 0)))
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-9", "P2", "z@x.com", true, 0)))

	links, err := s.store.ListByProfile(s.ctx, "P1")
	s.Require().NoError(err)
	s.Require().Len(links, 2)
	s.Equal(id.IdentityID("raw-1"), links[0].IdentityID)
	s.Equal(id.IdentityID("raw-2"), links[1].IdentityID)
}

func (s *InMemoryStoreSuite) TestClearPrimaryExcept() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-1", "P1", "a@x.com", true, 0)))
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-2", "P1", "b@x.com", true, time.Hour)))
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-9", "P2", "z@x.com", true, 0)))

	s.Require().NoError(s.store.ClearPrimaryExcept(s.ctx, "P1", "raw-2"))

	links, err := s.store.ListByProfile(s.ctx, "P1")
	s.Require().NoError(err)
	s.Len(models.Primaries(links), 1)
	s.Equal(id.IdentityID("raw-2"), models.Primaries(links)[0].IdentityID)

	other, err := s.store.FindByIdentity(s.ctx, "raw-9")
	s.Require().NoError(err)
	s.True(other.IsPrimary, "other profiles are untouched")
}

func (s *InMemoryStoreSuite) TestDeleteAndListProfileIDs() {
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-1", "P2", "a@x.com", true, 0)))
	s.Require().NoError(s.store.Upsert(s.ctx, s.link("raw-2", "P1", "b@x.com", true, 0)))

	ids, err := s.store.ListProfileIDs(s.ctx)
	s.Require().NoError(err)
	s.Equal([]id.ProfileID{"P1", "P2"}, ids)

	s.Require().NoError(s.store.Delete(s.ctx, "raw-1"))
	s.ErrorIs(s.store.Delete(s.ctx, "raw-1"), sentinel.ErrNotFound)
}
