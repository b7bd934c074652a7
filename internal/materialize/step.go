package materialize

import (
	"fmt"
	"strings"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/state"
)

// DefaultMaxRetries bounds re-queueing after failure. Re-queueing itself
// is a supervisor decision, not automatic.
const DefaultMaxRetries = 3

// Rows is the prior state slice one event is allowed to observe.
// Nil pointers mean the row does not exist yet.
type Rows struct {
	Entry   *state.QueueEntry
	Session *state.RuntimeSession
	Cell    *state.Cell
}

// RejectError reports a malformed event. The event is skipped; no
// partial mutation is applied.
type RejectError struct {
	EventID string
	Errs    []event.ValidationError
}

func (e *RejectError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, v := range e.Errs {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("event %s rejected: %s", e.EventID, strings.Join(msgs, "; "))
}

// Load reads the rows the envelope's step may observe. Runs on the fold
// goroutine before Step; the two-phase fetch (entry first, then the cell
// the entry points at) covers payloads that carry only a queue id.
func Load(s *state.Store, env event.Envelope) Rows {
	var rows Rows

	switch p := env.Payload.(type) {
	case event.ExecutionRequested:
		rows.Entry = entryPtr(s, p.QueueID)
		rows.Cell = cellPtr(s, p.CellID)
	case event.ExecutionAssigned:
		rows.Entry = entryPtr(s, p.QueueID)
	case event.ExecutionStarted:
		rows.Entry = entryPtr(s, p.QueueID)
		rows.Cell = cellPtr(s, p.CellID)
	case event.ExecutionCompleted:
		rows.Entry = entryPtr(s, p.QueueID)
		rows.Cell = cellPtr(s, p.CellID)
	case event.ExecutionCancelled:
		rows.Entry = entryPtr(s, p.QueueID)
		if rows.Entry != nil {
			rows.Cell = cellPtr(s, rows.Entry.CellID)
		}
	case event.RuntimeSessionStarted:
		rows.Session = sessionPtr(s, p.SessionID)
	case event.RuntimeSessionHeartbeat:
		rows.Session = sessionPtr(s, p.SessionID)
	case event.RuntimeSessionTerminated:
		rows.Session = sessionPtr(s, p.SessionID)
	}

	return rows
}

func entryPtr(s *state.Store, id string) *state.QueueEntry {
	if e, ok := s.Entry(id); ok {
		return &e
	}
	return nil
}

func sessionPtr(s *state.Store, id string) *state.RuntimeSession {
	if sess, ok := s.Session(id); ok {
		return &sess
	}
	return nil
}

func cellPtr(s *state.Store, id string) *state.Cell {
	if c, ok := s.Cell(id); ok {
		return &c
	}
	return nil
}

// Step computes the table mutations for one event.
//
// Pure: reads only env and prior. Returns an empty mutation set for
// guarded no-ops and a RejectError for malformed events.
func Step(env event.Envelope, prior Rows) ([]state.Mutation, error) {
	if errs := event.Validate(env); len(errs) > 0 {
		return nil, &RejectError{EventID: env.ID, Errs: errs}
	}

	switch p := env.Payload.(type) {
	case event.ExecutionRequested:
		return applyRequested(env, p, prior), nil
	case event.ExecutionAssigned:
		return applyAssigned(env, p, prior), nil
	case event.ExecutionStarted:
		return applyStarted(env, p, prior), nil
	case event.ExecutionCompleted:
		return applyCompleted(env, p, prior), nil
	case event.ExecutionCancelled:
		return applyCancelled(env, p, prior), nil
	case event.RuntimeSessionStarted:
		return applySessionStarted(env, p, prior), nil
	case event.RuntimeSessionHeartbeat:
		return applyHeartbeat(env, p, prior), nil
	case event.RuntimeSessionTerminated:
		return applyTerminated(env, p, prior), nil
	default:
		// Payload is sealed; unreachable unless the vocabulary grows
		// without a case here.
		return nil, fmt.Errorf("no step for event %s", env.Name)
	}
}

func applyRequested(env event.Envelope, p event.ExecutionRequested, prior Rows) []state.Mutation {
	// Duplicate queue id: the first request wins.
	if prior.Entry != nil {
		return nil
	}

	entry := state.QueueEntry{
		ID:          p.QueueID,
		CellID:      p.CellID,
		RequestedBy: p.RequestedBy,
		RequestedAt: env.Timestamp,
		Priority:    p.Priority,
		Status:      state.EntryPending,
		MaxRetries:  DefaultMaxRetries,
		Seq:         env.Seq,
	}
	cell := state.Cell{
		ID:      p.CellID,
		State:   state.CellQueued,
		QueueID: p.QueueID,
		Seq:     env.Seq,
	}
	return []state.Mutation{
		state.UpsertEntry{Entry: entry},
		state.UpsertCell{Cell: cell},
	}
}

func applyAssigned(env event.Envelope, p event.ExecutionAssigned, prior Rows) []state.Mutation {
	// First claim in log order wins; everything else is a stale claim.
	if prior.Entry == nil || prior.Entry.Status != state.EntryPending {
		return nil
	}

	entry := *prior.Entry
	entry.Status = state.EntryAssigned
	entry.AssignedSession = p.RuntimeSessionID
	entry.AssignedAt = p.AssignedAt
	entry.Seq = env.Seq
	return []state.Mutation{state.UpsertEntry{Entry: entry}}
}

func applyStarted(env event.Envelope, p event.ExecutionStarted, prior Rows) []state.Mutation {
	// Only the winning assignee may start the entry.
	if prior.Entry == nil ||
		prior.Entry.Status != state.EntryAssigned ||
		prior.Entry.AssignedSession != p.RuntimeSessionID {
		return nil
	}

	entry := *prior.Entry
	entry.Status = state.EntryExecuting
	entry.Seq = env.Seq

	cell := state.Cell{
		ID:      p.CellID,
		State:   state.CellRunning,
		QueueID: p.QueueID,
		Seq:     env.Seq,
	}
	return []state.Mutation{
		state.UpsertEntry{Entry: entry},
		state.UpsertCell{Cell: cell},
	}
}

func applyCompleted(env event.Envelope, p event.ExecutionCompleted, prior Rows) []state.Mutation {
	if prior.Entry == nil || prior.Entry.Status.Terminal() {
		return nil
	}

	entry := *prior.Entry
	if p.Status == event.CompletionSuccess {
		entry.Status = state.EntryCompleted
	} else {
		entry.Status = state.EntryFailed
	}
	entry.CompletedAt = p.CompletedAt
	entry.Error = p.Error
	entry.Seq = env.Seq

	cellState := state.CellCompleted
	if entry.Status == state.EntryFailed {
		cellState = state.CellError
	}
	cell := state.Cell{
		ID:      p.CellID,
		State:   cellState,
		QueueID: p.QueueID,
		Seq:     env.Seq,
	}
	return []state.Mutation{
		state.UpsertEntry{Entry: entry},
		state.UpsertCell{Cell: cell},
	}
}

func applyCancelled(env event.Envelope, p event.ExecutionCancelled, prior Rows) []state.Mutation {
	if prior.Entry == nil || prior.Entry.Status.Terminal() {
		return nil
	}

	entry := *prior.Entry
	entry.Status = state.EntryCancelled
	entry.AssignedSession = ""
	entry.AssignedAt = 0
	entry.CompletedAt = p.CancelledAt
	entry.Seq = env.Seq

	// The payload carries no cell id; the prior entry row does.
	cell := state.Cell{
		ID:    entry.CellID,
		State: state.CellIdle,
		Seq:   env.Seq,
	}
	return []state.Mutation{
		state.UpsertEntry{Entry: entry},
		state.UpsertCell{Cell: cell},
	}
}

func applySessionStarted(env event.Envelope, p event.RuntimeSessionStarted, prior Rows) []state.Mutation {
	// Session ids are never reused; a duplicate announce is a no-op.
	if prior.Session != nil {
		return nil
	}

	sess := state.RuntimeSession{
		SessionID:    p.SessionID,
		RuntimeID:    p.RuntimeID,
		Status:       state.SessionStarting,
		StartedAt:    env.Timestamp,
		Active:       true,
		Capabilities: p.Capabilities,
		Seq:          env.Seq,
	}
	return []state.Mutation{state.UpsertSession{Session: sess}}
}

func applyHeartbeat(env event.Envelope, p event.RuntimeSessionHeartbeat, prior Rows) []state.Mutation {
	// A heartbeat for an unknown or closed session is dropped: either it
	// raced ahead of the announce or it straggled past termination.
	if prior.Session == nil || prior.Session.Status.Terminal() {
		return nil
	}

	sess := *prior.Session
	if p.Status == event.HeartbeatBusy {
		sess.Status = state.SessionBusy
	} else {
		sess.Status = state.SessionReady
	}
	sess.LastHeartbeat = env.Timestamp
	sess.Seq = env.Seq
	return []state.Mutation{state.UpsertSession{Session: sess}}
}

func applyTerminated(env event.Envelope, p event.RuntimeSessionTerminated, prior Rows) []state.Mutation {
	if prior.Session == nil || prior.Session.Status.Terminal() {
		return nil
	}

	sess := *prior.Session
	sess.Status = state.SessionTerminated
	sess.Active = false
	sess.TerminatedAt = env.Timestamp
	sess.Seq = env.Seq
	return []state.Mutation{state.UpsertSession{Session: sess}}
}
