// Package timectrl provides the clock abstraction and wall-clock budget
// used by the planning engine. A ManualClock substitutes for real time in
// tests so deadline behavior can be exercised deterministically.
package timectrl

import (
	"sync"
	"time"
)

// Clock supplies the current time. SystemClock is the production
// implementation; ManualClock drives tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock whose time only moves when told to. Safe for
// concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a manual clock at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Budget tracks elapsed time against a wall-clock limit. A nil Budget or
// a non-positive limit never expires, so callers can thread one through
// unconditionally and only pay attention where it matters.
type Budget struct {
	clock Clock
	start time.Time
	limit time.Duration
}

// NewBudget starts a budget on the given clock. A nil clock falls back to
// the system clock; limit <= 0 means unlimited.
func NewBudget(clock Clock, limit time.Duration) *Budget {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Budget{clock: clock, start: clock.Now(), limit: limit}
}

// Limit returns the configured cap, 0 when unlimited.
func (b *Budget) Limit() time.Duration {
	if b == nil {
		return 0
	}
	return b.limit
}

// Elapsed returns the time spent since the budget started.
func (b *Budget) Elapsed() time.Duration {
	if b == nil {
		return 0
	}
	return b.clock.Now().Sub(b.start)
}

// Exhausted reports whether the limit has passed. The boundary counts as
// exhausted: a check landing exactly on the limit stops work.
func (b *Budget) Exhausted() bool {
	if b == nil || b.limit <= 0 {
		return false
	}
	return b.clock.Now().Sub(b.start) >= b.limit
}
