package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	lockoutstore "peoplehub/internal/auth/store/lockout"
	dErrors "peoplehub/pkg/domain-errors"
	"peoplehub/pkg/requestcontext"
	"peoplehub/pkg/testutil"
)

type LockoutSuite struct {
	suite.Suite
	store   *lockoutstore.InMemoryStore
	service *Service
}

func TestLockoutSuite(t *testing.T) {
	suite.Run(t, new(LockoutSuite))
}

func (s *LockoutSuite) SetupTest() {
	s.store = lockoutstore.NewInMemory()
	s.service = New(s.store, Config{Attempts: 3, Window: 10 * time.Minute, LockDuration: 5 * time.Minute})
}

func at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), testutil.FixedNow.Add(offset))
}

func (s *LockoutSuite) TestLocksAfterTooManyFailures() {
	s.NoError(s.service.RecordFailure(at(0), "Jane@Example.com"))
	s.NoError(s.service.RecordFailure(at(time.Minute), "jane@example.com"))
	s.NoError(s.service.Check(at(time.Minute), "jane@example.com"))

	err := s.service.RecordFailure(at(2*time.Minute), "jane@example.com")
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	err = s.service.Check(at(3*time.Minute), " JANE@example.com ")
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited), "addresses are normalized")

	s.NoError(s.service.Check(at(8*time.Minute), "jane@example.com"), "lock expires")
}

func (s *LockoutSuite) TestFailuresOutsideTheWindowDoNotAccumulate() {
	s.NoError(s.service.RecordFailure(at(0), "jane@example.com"))
	s.NoError(s.service.RecordFailure(at(time.Minute), "jane@example.com"))
	s.NoError(s.service.RecordFailure(at(30*time.Minute), "jane@example.com"))
	s.NoError(s.service.Check(at(30*time.Minute), "jane@example.com"))
}

func (s *LockoutSuite) TestClearForgetsFailures() {
	s.NoError(s.service.RecordFailure(at(0), "jane@example.com"))
	s.NoError(s.service.RecordFailure(at(0), "jane@example.com"))
	s.NoError(s.service.Clear(at(0), "jane@example.com"))

	s.NoError(s.service.RecordFailure(at(0), "jane@example.com"))
	s.NoError(s.service.RecordFailure(at(0), "jane@example.com"))
	s.NoError(s.service.Check(at(0), "jane@example.com"))
}

func (s *LockoutSuite) TestOtherAddressesAreUnaffected() {
	for i := 0; i < 3; i++ {
		_ = s.service.RecordFailure(at(0), "jane@example.com")
	}
	s.NoError(s.service.Check(at(0), "john@example.com"))
}
