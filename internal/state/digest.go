package state

import (
	"fmt"

	"github.com/quillnb/quill/internal/event"
)

// CanonicalState renders the full derived state as canonical JSON.
// Row order is fixed (sorted by id) and optional fields are omitted when
// empty, so two stores that derived the same state produce identical
// bytes regardless of map iteration or apply batching.
//
// Seq bookkeeping fields are included: two replicas that saw different
// log prefixes must not digest-match by accident.
func (s *Store) CanonicalState() ([]byte, error) {
	entries := s.Entries()
	sessions := s.Sessions()
	cells := s.Cells()

	entryRows := make([]any, 0, len(entries))
	for _, e := range entries {
		entryRows = append(entryRows, entryMap(e))
	}
	sessionRows := make([]any, 0, len(sessions))
	for _, sess := range sessions {
		sessionRows = append(sessionRows, sessionMap(sess))
	}
	cellRows := make([]any, 0, len(cells))
	for _, c := range cells {
		cellRows = append(cellRows, cellMap(c))
	}

	obj := map[string]any{
		"lastSeq":  s.LastSeq(),
		"entries":  entryRows,
		"sessions": sessionRows,
		"cells":    cellRows,
	}

	data, err := event.MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("canonical state: %w", err)
	}
	return data, nil
}

// Digest returns the content hash of the canonical state. Equal digests
// across replicas mean equal derived state.
func (s *Store) Digest() (string, error) {
	data, err := s.CanonicalState()
	if err != nil {
		return "", err
	}
	return event.StateDigest(data), nil
}

func entryMap(e QueueEntry) map[string]any {
	m := map[string]any{
		"id":          e.ID,
		"cellId":      e.CellID,
		"requestedBy": e.RequestedBy,
		"requestedAt": e.RequestedAt,
		"priority":    e.Priority,
		"status":      string(e.Status),
		"retryCount":  e.RetryCount,
		"maxRetries":  e.MaxRetries,
		"seq":         e.Seq,
	}
	if e.AssignedSession != "" {
		m["assignedRuntimeSession"] = e.AssignedSession
		m["assignedAt"] = e.AssignedAt
	}
	if e.CompletedAt != 0 {
		m["completedAt"] = e.CompletedAt
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}

func sessionMap(s RuntimeSession) map[string]any {
	m := map[string]any{
		"sessionId": s.SessionID,
		"runtimeId": s.RuntimeID,
		"status":    string(s.Status),
		"startedAt": s.StartedAt,
		"isActive":  s.Active,
		"capabilities": map[string]any{
			"canExecuteCode": s.Capabilities.CanExecuteCode,
			"canExecuteSql":  s.Capabilities.CanExecuteSQL,
			"canExecuteAi":   s.Capabilities.CanExecuteAI,
		},
		"seq": s.Seq,
	}
	if s.LastHeartbeat != 0 {
		m["lastHeartbeat"] = s.LastHeartbeat
	}
	if s.TerminatedAt != 0 {
		m["terminatedAt"] = s.TerminatedAt
	}
	return m
}

func cellMap(c Cell) map[string]any {
	m := map[string]any{
		"id":    c.ID,
		"state": string(c.State),
		"seq":   c.Seq,
	}
	if c.QueueID != "" {
		m["queueId"] = c.QueueID
	}
	return m
}
