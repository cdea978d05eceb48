package local

import (
	"time"

	"peoplehub/internal/auth"
	dErrors "peoplehub/pkg/domain-errors"
)

func (s *BackendSuite) nextEvent(events <-chan auth.Event) auth.Event {
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		s.FailNow("no auth event")
		return auth.Event{}
	}
}

func (s *BackendSuite) TestClientLifecycle() {
	events, cancel := s.client.Subscribe()
	defer cancel()

	current, err := s.client.GetSession(s.ctx())
	s.Require().NoError(err)
	s.Nil(current)

	_, err = s.client.GetUser(s.ctx())
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))

	session, err := s.client.SignInWithPassword(s.ctx(), "jane.doe@example.com", "correct-horse")
	s.Require().NoError(err)
	s.Equal(auth.EventSignedIn, s.nextEvent(events).Type)

	identity, err := s.client.GetUser(s.ctx())
	s.Require().NoError(err)
	s.Equal(session.Identity.ID, identity.ID)

	refreshed, err := s.client.RefreshSession(s.ctx())
	s.Require().NoError(err)
	s.NotEqual(session.RefreshToken, refreshed.RefreshToken)
	ev := s.nextEvent(events)
	s.Equal(auth.EventTokenRefreshed, ev.Type)
	s.Equal(refreshed.AccessToken, ev.Session.AccessToken)

	_, err = s.client.UpdateUser(s.ctx(), auth.UserUpdate{Metadata: map[string]any{"last_name": "Doe"}})
	s.Require().NoError(err)
	ev = s.nextEvent(events)
	s.Equal(auth.EventUserUpdated, ev.Type)
	s.Equal("Doe", ev.Session.Identity.MetadataString("last_name"))

	s.Require().NoError(s.client.SignOut(s.ctx()))
	s.Equal(auth.EventSignedOut, s.nextEvent(events).Type)

	current, _ = s.client.GetSession(s.ctx())
	s.Nil(current)
}

func (s *BackendSuite) TestClientRefreshFailureSignsOut() {
	events, cancel := s.client.Subscribe()
	defer cancel()

	_, err := s.client.SignInWithPassword(s.ctx(), "jane.doe@example.com", "correct-horse")
	s.Require().NoError(err)
	s.nextEvent(events)

	s.clock = s.clock.Add(48 * time.Hour)
	_, err = s.client.RefreshSession(s.ctx())
	s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))
	s.Equal(auth.EventSignedOut, s.nextEvent(events).Type)
}

func (s *BackendSuite) TestClientSetSession() {
	issued, err := s.backend.PasswordGrant(s.ctx(), "jane.doe@example.com", "correct-horse")
	s.Require().NoError(err)

	s.Run("live token is adopted", func() {
		restored, err := s.client.SetSession(s.ctx(), issued)
		s.Require().NoError(err)
		s.Equal(issued.AccessToken, restored.AccessToken)
	})

	s.Run("expired token is refreshed", func() {
		s.clock = s.clock.Add(2 * time.Hour)
		restored, err := s.client.SetSession(s.ctx(), issued)
		s.Require().NoError(err)
		s.NotEqual(issued.AccessToken, restored.AccessToken)
		s.True(restored.ExpiresAt.After(s.clock))
	})

	s.Run("nil session", func() {
		_, err := s.client.SetSession(s.ctx(), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeSessionInvalid))
	})
}

func (s *BackendSuite) TestClientOAuthUnsupported() {
	_, err := s.client.SignInWithOAuth(s.ctx(), "google", "https://app.example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
