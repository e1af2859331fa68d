// Package clock abstracts wall-clock time so manifest timestamps can be
// pinned in tests.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns CurrentTime until advanced.
type FixedClock struct {
	CurrentTime time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.CurrentTime
}

// Advance moves the fixed time forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.CurrentTime = c.CurrentTime.Add(d)
}
