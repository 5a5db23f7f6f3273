package core

import "time"

// Clock abstracts wall time so window and decay behavior can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the process wall clock.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a manually advanced clock for tests.
type FixedClock struct {
	Current time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{Current: t}
}

func (c *FixedClock) Now() time.Time { return c.Current }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}
