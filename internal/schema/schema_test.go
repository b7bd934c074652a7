package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnb/quill/internal/event"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func TestNewRegistry_CoversAllKnownNames(t *testing.T) {
	r := newRegistry(t)
	for _, name := range event.KnownNames() {
		_, ok := r.defs[name]
		assert.True(t, ok, name)
	}
}

func TestValidatePayload_Valid(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name string
		raw  string
	}{
		{event.NameExecutionRequested, `{"queueId":"q1","cellId":"c1","requestedBy":"u1","priority":5}`},
		{event.NameExecutionAssigned, `{"queueId":"q1","runtimeSessionId":"s1","assignedAt":1000}`},
		{event.NameExecutionStarted, `{"queueId":"q1","cellId":"c1","runtimeSessionId":"s1","startedAt":1001}`},
		{event.NameExecutionCompleted, `{"queueId":"q1","cellId":"c1","status":"success","completedAt":1002}`},
		{event.NameExecutionCompleted, `{"queueId":"q1","cellId":"c1","status":"error","completedAt":1002,"error":"boom"}`},
		{event.NameExecutionCancelled, `{"queueId":"q1","cancelledBy":"u1","reason":"user request","cancelledAt":1003}`},
		{event.NameRuntimeSessionStarted, `{"sessionId":"s1","runtimeId":"r1","capabilities":{"canExecuteCode":true,"canExecuteSql":false,"canExecuteAi":false}}`},
		{event.NameRuntimeSessionHeartbeat, `{"sessionId":"s1","status":"ready"}`},
		{event.NameRuntimeSessionTerminated, `{"sessionId":"s1","reason":"shutdown"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, r.ValidatePayload(tt.name, []byte(tt.raw)))
		})
	}
}

func TestValidatePayload_Rejections(t *testing.T) {
	r := newRegistry(t)

	tests := []struct {
		name  string
		event string
		raw   string
	}{
		{"missing required field", event.NameExecutionRequested, `{"cellId":"c1","requestedBy":"u1","priority":0}`},
		{"empty identifier", event.NameExecutionRequested, `{"queueId":"","cellId":"c1","requestedBy":"u1","priority":0}`},
		{"float priority", event.NameExecutionRequested, `{"queueId":"q1","cellId":"c1","requestedBy":"u1","priority":1.5}`},
		{"unknown field", event.NameRuntimeSessionHeartbeat, `{"sessionId":"s1","status":"ready","extra":true}`},
		{"bad enum", event.NameRuntimeSessionHeartbeat, `{"sessionId":"s1","status":"sleeping"}`},
		{"bad termination reason", event.NameRuntimeSessionTerminated, `{"sessionId":"s1","reason":"vanished"}`},
		{"wrong type", event.NameExecutionAssigned, `{"queueId":"q1","runtimeSessionId":"s1","assignedAt":"soon"}`},
		{"not json", event.NameExecutionRequested, `{"queueId":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ValidatePayload(tt.event, []byte(tt.raw))
			require.Error(t, err)

			var serr *Error
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func TestValidatePayload_UnknownName(t *testing.T) {
	r := newRegistry(t)
	err := r.ValidatePayload("v1.SomethingNew", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrUnknownName)
}

func TestValidatePayload_AcceptsEncodedTypedPayloads(t *testing.T) {
	r := newRegistry(t)

	payloads := []event.Payload{
		event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1", Priority: 3},
		event.RuntimeSessionStarted{SessionID: "s1", RuntimeID: "r1"},
		event.RuntimeSessionTerminated{SessionID: "s1", Reason: event.TerminatedTimeout},
	}

	for _, p := range payloads {
		data, err := event.EncodePayload(p)
		require.NoError(t, err)
		assert.NoError(t, r.ValidatePayload(p.EventName(), data), p.EventName())
	}
}
