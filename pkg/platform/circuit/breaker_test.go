package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) breaker(opts ...Option) *Breaker {
	opts = append(opts, WithClock(func() time.Time { return s.now }))
	return New("audit-kafka", opts...)
}

func (s *BreakerSuite) TestNew() {
	b := s.breaker()
	s.Equal("audit-kafka", b.Name())
	s.Equal(StateClosed, b.State())
	s.Equal("closed", b.State().String())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestRecordFailure() {
	s.Run("opens on the threshold failure only", func() {
		b := s.breaker(WithFailureThreshold(3))
		for range 2 {
			fallback, change := b.RecordFailure()
			s.False(fallback)
			s.False(change.Opened)
		}
		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.True(change.Opened)
		s.True(b.IsOpen())

		fallback, change = b.RecordFailure()
		s.True(fallback)
		s.False(change.Opened, "already open")
	})

	s.Run("a success in between restarts the count", func() {
		b := s.breaker(WithFailureThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		s.False(b.IsOpen())
		b.RecordFailure()
		s.True(b.IsOpen())
	})

	s.Run("non-positive thresholds keep the defaults", func() {
		b := s.breaker(WithFailureThreshold(0), WithSuccessThreshold(-1))
		for range 4 {
			b.RecordFailure()
		}
		s.False(b.IsOpen())
		b.RecordFailure()
		s.True(b.IsOpen())
	})
}

func (s *BreakerSuite) TestRecordSuccess() {
	s.Run("closes after consecutive successes", func() {
		b := s.breaker(WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()

		primary, change := b.RecordSuccess()
		s.False(primary)
		s.False(change.Closed)

		primary, change = b.RecordSuccess()
		s.True(primary)
		s.True(change.Closed)
		s.Equal(StateClosed, b.State())
	})

	s.Run("a failure while open restarts the success count", func() {
		b := s.breaker(WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordSuccess()
		s.True(b.IsOpen())
		b.RecordSuccess()
		s.False(b.IsOpen())
	})
}

func (s *BreakerSuite) TestAllow() {
	b := s.breaker(WithFailureThreshold(1), WithCooldown(time.Minute))
	b.RecordFailure()
	s.False(b.Allow())

	s.now = s.now.Add(time.Minute)
	s.True(b.Allow(), "one probe per cooldown")
	s.False(b.Allow())

	s.now = s.now.Add(30 * time.Second)
	s.False(b.Allow())
	s.Equal("open", b.State().String())
}

func (s *BreakerSuite) TestReset() {
	b := s.breaker(WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}
