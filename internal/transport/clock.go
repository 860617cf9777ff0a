package transport

import "time"

// Clock is the audio time base: a monotonic reading from an arbitrary epoch.
// Implemented by SystemClock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the monotonic wall clock.
//
// Thread-safety: SystemClock is immutable and safe for concurrent use.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock returns a clock reading 0 now.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.epoch)
}
