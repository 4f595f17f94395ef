package testutil

import (
	"sync"
	"time"
)

// Clock is a controllable time source. Every Now call moves it forward by
// one millisecond so consecutive writes get distinct timestamps.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC(), step: time.Millisecond}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Peek returns the next value of Now without consuming it.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Freeze stops Now from moving on its own; only Advance changes it.
func (c *Clock) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = 0
}
