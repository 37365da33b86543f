package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant returned by a Clock created with a zero
// start time: 2024-01-01T00:00:00Z.
var DefaultEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a deterministic wall clock for tests. Every call to Now advances
// it by a fixed step, so event timestamps are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// NewClock creates a clock whose first Now() returns start. A zero start
// uses DefaultEpoch; a non-positive step uses one millisecond.
func NewClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	if step <= 0 {
		step = time.Millisecond
	}
	return &Clock{start: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Current returns the instant the next Now() will return, without
// advancing.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.ticks) * c.step)
}

// Reset rewinds the clock to its start.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
