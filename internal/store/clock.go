package store

import (
	"sync"
	"time"
)

// Clock is the time source for timestamps written by the store and for
// session expiry. Tests shift it instead of sleeping.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
	fixed  time.Time
}

// NewClock creates a clock that follows wall time.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current clock time in UTC.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.fixed.IsZero() {
		return c.fixed.Add(c.offset).UTC()
	}
	return time.Now().Add(c.offset).UTC()
}

// Freeze pins the clock to t. Advance still moves it.
func (c *Clock) Freeze(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixed = t
	c.offset = 0
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Reset returns the clock to wall time.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
	c.fixed = time.Time{}
}

// Offset returns the current clock offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
