package engine

import (
	"sync"

	"github.com/quillnb/quill/internal/event"
)

// envelopeQueue is a thread-safe FIFO queue of envelopes awaiting the
// fold loop.
//
// Unbounded: a burst of submissions from runtime sessions must never
// block the submitter. Thread-safety exists for external enqueuing
// while the Engine's Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware
// waiting in the Run loop.
type envelopeQueue struct {
	mu     sync.Mutex
	events []event.Envelope
	closed bool
	signal chan struct{} // buffered, size 1 - coalesces signals
}

func newEnvelopeQueue() *envelopeQueue {
	return &envelopeQueue{
		events: make([]event.Envelope, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an envelope to the back of the queue.
// Thread-safe. Returns false if the queue is closed.
func (q *envelopeQueue) Enqueue(env event.Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, env)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Envelope{}, false) if the queue is empty.
func (q *envelopeQueue) TryDequeue() (event.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event.Envelope{}, false
	}

	env := q.events[0]

	// Nil out the slot so the payload can be collected before the
	// underlying array is reallocated.
	q.events[0] = event.Envelope{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return env, true
}

// Wait returns a channel that signals when envelopes may be available.
// Use with select alongside ctx.Done().
func (q *envelopeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *envelopeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more envelopes will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *envelopeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
