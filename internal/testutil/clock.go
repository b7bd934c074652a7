package testutil

import "sync"

// DeterministicClock is a thread-safe logical clock for tests.
//
// Unlike engine.Clock it can be reset for test reuse, so the same
// scenario can run multiple times with identical writer-seq values.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock starting at 0.
// The first call to Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the next sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset resets the clock to 0. After Reset(), Next() returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

// FixedNow returns a time source frozen at ms. Envelope timestamps are
// data, not ordering, so a frozen clock keeps golden files stable
// without affecting derivation.
func FixedNow(ms int64) func() int64 {
	return func() int64 { return ms }
}

// SteppingNow returns a time source that starts at ms and advances by
// step on every call. Useful for heartbeat-age walks.
func SteppingNow(ms, step int64) func() int64 {
	var mu sync.Mutex
	next := ms
	return func() int64 {
		mu.Lock()
		defer mu.Unlock()
		v := next
		next += step
		return v
	}
}
