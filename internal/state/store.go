package state

import (
	"slices"
	"strings"
	"sync"
)

// Store is the in-memory derived state for one scope.
//
// Writes come only from Apply (called by the engine's single fold
// goroutine); reads may come from any goroutine and return value copies.
// Subscribers get a coalescing signal after each applied batch, in the
// same buffered-channel style the engine's event queue uses: a slow
// consumer sees at least one signal, not one per batch.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]QueueEntry
	sessions map[string]RuntimeSession
	cells    map[string]Cell
	lastSeq  int64

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]QueueEntry),
		sessions: make(map[string]RuntimeSession),
		cells:    make(map[string]Cell),
		subs:     make(map[int]chan struct{}),
	}
}

// Apply executes one event's mutations atomically and records seq as the
// latest applied log position. An empty batch still advances lastSeq -
// a skipped or no-op event was observed even if it changed nothing.
func (s *Store) Apply(seq int64, muts []Mutation) {
	s.mu.Lock()
	for _, m := range muts {
		switch v := m.(type) {
		case UpsertEntry:
			s.entries[v.Entry.ID] = v.Entry
		case UpsertSession:
			s.sessions[v.Session.SessionID] = v.Session
		case UpsertCell:
			s.cells[v.Cell.ID] = v.Cell
		}
	}
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
	s.mu.Unlock()

	if len(muts) > 0 {
		s.notify()
	}
}

// LastSeq returns the log position of the last applied event.
func (s *Store) LastSeq() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// Entry returns a copy of the queue entry with the given id.
func (s *Store) Entry(id string) (QueueEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Session returns a copy of the runtime session with the given id.
func (s *Store) Session(id string) (RuntimeSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Cell returns a copy of the cell row with the given id.
func (s *Store) Cell(id string) (Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[id]
	return c, ok
}

// Entries returns all queue entries ordered by id.
func (s *Store) Entries() []QueueEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b QueueEntry) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Sessions returns all runtime sessions ordered by session id.
func (s *Store) Sessions() []RuntimeSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RuntimeSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	slices.SortFunc(out, func(a, b RuntimeSession) int { return strings.Compare(a.SessionID, b.SessionID) })
	return out
}

// Cells returns all cell rows ordered by id.
func (s *Store) Cells() []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Cell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Cell) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// PendingEntries returns claimable entries in claim order: priority
// descending, then requestedAt ascending, then log position, then id.
// The last two tie-breaks keep the order total and replica-independent.
func (s *Store) PendingEntries() []QueueEntry {
	s.mu.RLock()
	out := make([]QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Status == EntryPending {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b QueueEntry) int {
		if a.Priority != b.Priority {
			if a.Priority > b.Priority {
				return -1
			}
			return 1
		}
		if a.RequestedAt != b.RequestedAt {
			if a.RequestedAt < b.RequestedAt {
				return -1
			}
			return 1
		}
		if a.Seq != b.Seq {
			if a.Seq < b.Seq {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// NonTerminalEntries returns entries still in flight, ordered by id.
// The orphan sweep joins these against session health.
func (s *Store) NonTerminalEntries() []QueueEntry {
	s.mu.RLock()
	out := make([]QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.Status.Terminal() {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b QueueEntry) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// ActiveSessions returns sessions with Active set, ordered by session id.
func (s *Store) ActiveSessions() []RuntimeSession {
	s.mu.RLock()
	out := make([]RuntimeSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Active {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b RuntimeSession) int { return strings.Compare(a.SessionID, b.SessionID) })
	return out
}

// Subscribe registers for change signals. The returned channel receives
// a coalesced signal after state changes; cancel unregisters and must be
// called to avoid leaking the subscription.
func (s *Store) Subscribe() (ch <-chan struct{}, cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	c := make(chan struct{}, 1)
	s.subs[id] = c
	s.subMu.Unlock()

	return c, func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// notify signals all subscribers without blocking. The buffer of 1
// coalesces bursts.
func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, c := range s.subs {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}
