package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time for FixedClock: 2024-01-15T10:00:00Z.
var Epoch = time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)

// FixedClock is a manually advanced clock for tests.
//
// Trash retention and provenance timestamps read from it, so a test can
// trash an entity, advance the clock 31 days and observe cleanup without
// sleeping.
//
// Thread-safety: all methods are safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t. A zero t means Epoch.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = Epoch
	}
	return &FixedClock{now: t.UTC()}
}

// Now returns the current frozen time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// AdvanceDays moves the clock forward by whole days.
func (c *FixedClock) AdvanceDays(days int) {
	c.Advance(time.Duration(days) * 24 * time.Hour)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
