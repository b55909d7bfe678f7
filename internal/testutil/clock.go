package testutil

import "sync"

// DeterministicClock provides a thread-safe millisecond clock for tests.
//
// Each call to Next advances the clock by a fixed step, so the same test
// produces the same stamp times on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	now   int64
}

// NewDeterministicClock creates a clock whose first Next returns
// start+step. A step of zero or less is treated as 1.
func NewDeterministicClock(start, step int64) *DeterministicClock {
	if step <= 0 {
		step = 1
	}
	return &DeterministicClock{start: start, step: step, now: start}
}

// Next advances the clock by one step and returns the new time.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the current time without advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
