package event

import (
	"fmt"
)

// PayloadMap renders a typed payload as a map of primitives for canonical
// serialization. Field names match the wire schema (camelCase).
//
// This is written out by hand rather than bounced through encoding/json so
// the canonical form cannot drift with struct-tag changes: the wire names
// here are the contract.
func PayloadMap(p Payload) (map[string]any, error) {
	switch v := p.(type) {
	case ExecutionRequested:
		return map[string]any{
			"queueId":     v.QueueID,
			"cellId":      v.CellID,
			"requestedBy": v.RequestedBy,
			"priority":    v.Priority,
		}, nil
	case ExecutionAssigned:
		return map[string]any{
			"queueId":          v.QueueID,
			"runtimeSessionId": v.RuntimeSessionID,
			"assignedAt":       v.AssignedAt,
		}, nil
	case ExecutionStarted:
		return map[string]any{
			"queueId":          v.QueueID,
			"cellId":           v.CellID,
			"runtimeSessionId": v.RuntimeSessionID,
			"startedAt":        v.StartedAt,
		}, nil
	case ExecutionCompleted:
		m := map[string]any{
			"queueId":     v.QueueID,
			"cellId":      v.CellID,
			"status":      v.Status,
			"completedAt": v.CompletedAt,
		}
		if v.Error != "" {
			m["error"] = v.Error
		}
		return m, nil
	case ExecutionCancelled:
		return map[string]any{
			"queueId":     v.QueueID,
			"cancelledBy": v.CancelledBy,
			"reason":      v.Reason,
			"cancelledAt": v.CancelledAt,
		}, nil
	case RuntimeSessionStarted:
		return map[string]any{
			"sessionId": v.SessionID,
			"runtimeId": v.RuntimeID,
			"capabilities": map[string]any{
				"canExecuteCode": v.Capabilities.CanExecuteCode,
				"canExecuteSql":  v.Capabilities.CanExecuteSQL,
				"canExecuteAi":   v.Capabilities.CanExecuteAI,
			},
		}, nil
	case RuntimeSessionHeartbeat:
		return map[string]any{
			"sessionId": v.SessionID,
			"status":    v.Status,
		}, nil
	case RuntimeSessionTerminated:
		return map[string]any{
			"sessionId": v.SessionID,
			"reason":    v.Reason,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported payload type: %T", p)
	}
}

// EncodePayload serializes a payload to canonical JSON text.
// Storage uses this form so a byte comparison of two logs is meaningful.
func EncodePayload(p Payload) ([]byte, error) {
	m, err := PayloadMap(p)
	if err != nil {
		return nil, err
	}
	data, err := MarshalCanonical(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventName(), err)
	}
	return data, nil
}
