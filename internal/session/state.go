// Package session owns the signed-in state of the application: the state
// machine that turns auth events into profile-backed sessions, and the keeper
// that stops sessions from silently expiring.
package session

import (
	"peoplehub/internal/auth"
	"peoplehub/internal/profile/models"
)

// State is the coarse state of the session.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is a read-only view of the session. Profile is never nil and
// never disabled while State is StateAuthenticated.
type Snapshot struct {
	State   State
	Profile *models.Profile
	Session *auth.Session
	// Err is the last error surfaced to the user: a transient load failure
	// while loading, or the reason for a forced sign-out.
	Err     error
	Version uint64

	epoch uint64
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

func (s Snapshot) Loading() bool {
	return s.State == StateLoading || s.State == StateUninitialized
}

func (s Snapshot) clone() Snapshot {
	s.Profile = s.Profile.Clone()
	s.Session = s.Session.Clone()
	return s
}

type change int

const (
	changeStart change = iota
	changeLoading
	changeLoadFailed
	changeAuthenticated
	changeSessionRefreshed
	changeSignedOut
)

func (c change) String() string {
	switch c {
	case changeStart:
		return "start"
	case changeLoading:
		return "loading"
	case changeLoadFailed:
		return "load_failed"
	case changeAuthenticated:
		return "authenticated"
	case changeSessionRefreshed:
		return "session_refreshed"
	case changeSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// transitions lists the states each change may be applied in.
var transitions = map[change][]State{
	changeStart:            {StateUninitialized},
	changeLoading:          {StateLoading, StateAuthenticated, StateUnauthenticated},
	changeLoadFailed:       {StateLoading},
	changeAuthenticated:    {StateLoading, StateAuthenticated},
	changeSessionRefreshed: {StateLoading, StateAuthenticated},
	changeSignedOut:        {StateLoading, StateAuthenticated, StateUnauthenticated},
}

// transition is one requested mutation. A non-zero epoch ties the result of
// a load to the loading phase that started it; results of a superseded phase
// are dropped.
type transition struct {
	change  change
	epoch   uint64
	session *auth.Session
	profile *models.Profile
	err     error
}

func allowed(c change, from State) bool {
	for _, s := range transitions[c] {
		if s == from {
			return true
		}
	}
	return false
}

// next computes the state after t, or false when t does not apply.
func next(cur Snapshot, t transition) (Snapshot, bool) {
	if !allowed(t.change, cur.State) {
		return cur, false
	}
	if t.epoch != 0 && t.epoch != cur.epoch {
		return cur, false
	}
	n := cur
	switch t.change {
	case changeStart:
		n.State = StateLoading
	case changeLoading:
		n.State = StateLoading
		n.Err = nil
		n.epoch++
		if cur.Session == nil || t.session == nil || cur.Session.Identity.ID != t.session.Identity.ID {
			n.Profile = nil
		}
		if t.session != nil {
			n.Session = t.session.Clone()
		}
	case changeLoadFailed:
		n.Err = t.err
	case changeAuthenticated:
		if t.profile == nil || t.profile.CheckAccess() != nil {
			return cur, false
		}
		n.State = StateAuthenticated
		n.Profile = t.profile.Clone()
		if t.session != nil {
			n.Session = t.session.Clone()
		}
		if n.Session == nil {
			return cur, false
		}
		n.Err = nil
	case changeSessionRefreshed:
		if t.session == nil || cur.Session == nil || t.session.Identity.ID != cur.Session.Identity.ID {
			return cur, false
		}
		n.Session = t.session.Clone()
	case changeSignedOut:
		if cur.State == StateUnauthenticated && t.err == nil {
			return cur, false
		}
		n = Snapshot{State: StateUnauthenticated, Err: t.err, epoch: cur.epoch + 1}
	}
	n.Version = cur.Version + 1
	return n, true
}
