package engine

import "sync/atomic"

// Clock issues the writer's per-scope sequence numbers.
//
// Every event a writer appends carries a strictly increasing writerSeq
// from this clock; the log deduplicates on (scope, writerId, writerSeq),
// so a retried append with the same writerSeq lands exactly once.
//
// Thread-safety: safe for concurrent use (atomic operations), though
// the Engine's single-writer design means only one goroutine typically
// calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used when resuming a writer identity from the last appended position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
