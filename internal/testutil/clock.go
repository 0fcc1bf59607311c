package testutil

import (
	"sync"
	"time"
)

// Epoch stamps every fabricated status and notification, and is where a
// fresh Clock starts.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source. Pass Current wherever code
// takes a now func, such as worker.WithNow, and call Next to move time.
//
// Safe for concurrent use.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock returns a clock starting at Epoch and advancing one minute per
// call to Next.
func NewClock() *Clock {
	return &Clock{now: Epoch, step: time.Minute}
}

// Next advances the clock and returns the new time. The first call
// returns Epoch plus one step.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the current time without advancing.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to Epoch.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
