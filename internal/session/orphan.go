package session

import (
	"github.com/quillnb/quill/internal/state"
)

// Orphan is a non-terminal queue entry whose assignee cannot be counted
// on: the session is stale, terminated, or missing from the log.
//
// The sweep only observes. Cancelling or re-queueing an orphan is a
// supervisor decision made outside this engine.
type Orphan struct {
	Entry          state.QueueEntry
	Session        state.RuntimeSession // zero value when SessionMissing
	SessionMissing bool
	Health         Health
}

// Sweeper joins non-terminal entries against session health.
type Sweeper struct {
	store      *state.Store
	thresholds Thresholds
	now        func() int64
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithThresholds overrides the default health thresholds.
func WithThresholds(t Thresholds) SweeperOption {
	return func(s *Sweeper) { s.thresholds = t }
}

// WithNow overrides the wall clock. Tests inject a fixed time source.
func WithNow(now func() int64) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a sweeper over the given derived state.
func NewSweeper(store *state.Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:      store,
		thresholds: DefaultThresholds(),
		now:        nowMillis,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep returns the current orphans, ordered by entry id.
//
// An entry counts as orphaned when it is assigned or executing and its
// assignee session is terminated, stale, or absent. Pending entries are
// never orphans: nothing owns them yet.
func (s *Sweeper) Sweep() []Orphan {
	now := s.now()
	var orphans []Orphan

	for _, entry := range s.store.NonTerminalEntries() {
		if entry.AssignedSession == "" {
			continue
		}

		sess, ok := s.store.Session(entry.AssignedSession)
		if !ok {
			orphans = append(orphans, Orphan{
				Entry:          entry,
				SessionMissing: true,
				Health:         HealthUnknown,
			})
			continue
		}

		health := Classify(sess, now, s.thresholds)
		if !sess.Active || health.LikelyDead() {
			orphans = append(orphans, Orphan{
				Entry:   entry,
				Session: sess,
				Health:  health,
			})
		}
	}

	return orphans
}
