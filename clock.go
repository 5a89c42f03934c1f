package metricz

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Timestamp is a monotonic nanosecond reading relative to a Clock's epoch.
type Timestamp uint64

// Sub returns the elapsed time between two timestamps.
// Returns zero if earlier is after t.
func (t Timestamp) Sub(earlier Timestamp) time.Duration {
	if earlier > t {
		return 0
	}
	return time.Duration(t - earlier)
}

// Clock turns an injected clockz.Clock into monotonic nanosecond timestamps.
// Readings are taken relative to the instant the Clock was created so they
// stay small and never go negative.
type Clock struct {
	source clockz.Clock
	epoch  time.Time
}

// NewClock creates a Clock over source. A nil source uses the real clock.
func NewClock(source clockz.Clock) *Clock {
	if source == nil {
		source = clockz.RealClock
	}
	return &Clock{
		source: source,
		epoch:  source.Now(),
	}
}

// Now returns the current timestamp.
func (c *Clock) Now() Timestamp {
	// time.Time from the real clock carries a monotonic reading, so Sub is
	// immune to wall clock adjustments.
	elapsed := c.source.Now().Sub(c.epoch)
	if elapsed < 0 {
		return 0
	}
	return Timestamp(elapsed)
}
