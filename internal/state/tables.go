// Package state holds the derived view of the event log: queue entries,
// runtime sessions, and cell execution states.
//
// Rows here are exclusively produced by the materializer fold. Nothing
// else writes them; readers get value copies. Replaying the same event
// sequence on two independent stores must produce the same Digest.
package state

import "github.com/quillnb/quill/internal/event"

// EntryStatus is the queue entry state machine.
// Transitions are strictly forward: pending → assigned → executing →
// {completed, failed}; cancelled is reachable from any non-terminal
// status. No entry ever regresses.
type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryAssigned  EntryStatus = "assigned"
	EntryExecuting EntryStatus = "executing"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
	EntryCancelled EntryStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s EntryStatus) Terminal() bool {
	return s == EntryCompleted || s == EntryFailed || s == EntryCancelled
}

// rank orders the forward path. Terminal statuses share a rank: none of
// them can be left.
func (s EntryStatus) rank() int {
	switch s {
	case EntryPending:
		return 0
	case EntryAssigned:
		return 1
	case EntryExecuting:
		return 2
	case EntryCompleted, EntryFailed, EntryCancelled:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next respects the
// forward-only state machine.
func (s EntryStatus) CanTransition(next EntryStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == EntryCancelled {
		return true
	}
	return next.rank() == s.rank()+1
}

// CellState is the denormalized execution view on the cell itself,
// updated in the same materializer step as the owning queue entry.
type CellState string

const (
	CellIdle      CellState = "idle"
	CellQueued    CellState = "queued"
	CellRunning   CellState = "running"
	CellCompleted CellState = "completed"
	CellError     CellState = "error"
)

// SessionStatus is the runtime session lifecycle.
type SessionStatus string

const (
	SessionStarting   SessionStatus = "starting"
	SessionReady      SessionStatus = "ready"
	SessionBusy       SessionStatus = "busy"
	SessionRestarting SessionStatus = "restarting"
	SessionTerminated SessionStatus = "terminated"
)

// Terminal reports whether the session accepts no further events.
func (s SessionStatus) Terminal() bool {
	return s == SessionTerminated
}

// QueueEntry is one requested execution.
//
// AssignedSession is a weak reference: it stores the session id and must
// tolerate that session later terminating. Seq records the log position
// of the last event applied to this row.
type QueueEntry struct {
	ID              string
	CellID          string
	RequestedBy     string
	RequestedAt     int64
	Priority        int64
	Status          EntryStatus
	AssignedSession string
	AssignedAt      int64
	CompletedAt     int64
	Error           string
	RetryCount      int64
	MaxRetries      int64
	Seq             int64
}

// RuntimeSession is one live connection from a compute process.
// SessionID is unique per process start; RuntimeID is stable across
// restarts of the same runtime.
type RuntimeSession struct {
	SessionID     string
	RuntimeID     string
	Status        SessionStatus
	StartedAt     int64
	LastHeartbeat int64
	TerminatedAt  int64
	Active        bool
	Capabilities  event.Capabilities
	Seq           int64
}

// Cell is the derived execution state of one notebook cell. QueueID is
// the entry currently driving the state.
type Cell struct {
	ID      string
	State   CellState
	QueueID string
	Seq     int64
}
