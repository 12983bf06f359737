package timeutil

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Sleeper abstracts blocking delays so callers (rate limiting, retry
// backoff, dispatch cadence) can be driven by a fake clock in tests
// instead of real wall-clock time.
type Sleeper interface {
	Sleep(d time.Duration)
	Now() time.Time
}

// RealSleeper is the production Sleeper, backed by benbjohnson/clock's
// real clock so the same interface serves both production and
// clock.NewMock()-driven tests.
type RealSleeper struct {
	clock clock.Clock
}

func NewRealSleeper() RealSleeper {
	return RealSleeper{clock: clock.New()}
}

func (s *RealSleeper) Sleep(d time.Duration) {
	s.clock.Sleep(d)
}

func (s *RealSleeper) Now() time.Time {
	return s.clock.Now()
}

// NewSleeperFromClock builds a Sleeper over an arbitrary clock.Clock,
// letting tests inject clock.NewMock() for deterministic dispatch-cadence
// and backoff assertions.
func NewSleeperFromClock(c clock.Clock) RealSleeper {
	return RealSleeper{clock: c}
}
