package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/materialize"
	"github.com/quillnb/quill/internal/state"
)

// fixtureResult builds a result around a hand-constructed derived state:
// one assigned entry, one ready session, one running cell.
func fixtureResult(t *testing.T) *Result {
	t.Helper()

	st := state.NewStore()
	st.Apply(4, []state.Mutation{
		state.UpsertEntry{Entry: state.QueueEntry{
			ID:              "q-1",
			CellID:          "cell-1",
			RequestedBy:     "user-1",
			RequestedAt:     2000,
			Priority:        3,
			Status:          state.EntryAssigned,
			AssignedSession: "sess-1",
			AssignedAt:      2100,
			MaxRetries:      3,
			Seq:             4,
		}},
		state.UpsertSession{Session: state.RuntimeSession{
			SessionID:     "sess-1",
			RuntimeID:     "rt-1",
			Status:        state.SessionReady,
			StartedAt:     1000,
			LastHeartbeat: 1500,
			Active:        true,
			Capabilities:  event.Capabilities{CanExecuteCode: true},
			Seq:           2,
		}},
		state.UpsertCell{Cell: state.Cell{
			ID:      "cell-1",
			State:   state.CellQueued,
			QueueID: "q-1",
			Seq:     4,
		}},
	})

	return &Result{
		Scenario: &Scenario{Name: "fixture"},
		Stats:    materialize.FoldStats{Applied: 3, NoOps: 1},
		State:    st,
	}
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := fixtureResult(t)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "entries", ID: "q-1", Expect: map[string]any{
			"status":                 "assigned",
			"assignedRuntimeSession": "sess-1",
			"priority":               3,
		}},
		{Type: AssertFinalState, Table: "sessions", ID: "sess-1", Expect: map[string]any{
			"isActive":      true,
			"lastHeartbeat": 1500,
			"capabilities":  map[string]any{"canExecuteCode": true, "canExecuteSql": false},
		}},
		{Type: AssertFinalState, Table: "cells", ID: "cell-1", Expect: map[string]any{
			"state":   "queued",
			"queueId": "q-1",
		}},
		{Type: AssertRowCount, Table: "entries", Count: 1},
		{Type: AssertFoldStats, Expect: map[string]any{"applied": 3, "noOps": 1, "rejected": 0}},
	})

	assert.Empty(t, failures)
}

func TestEvaluateAssertions_ValueMismatch(t *testing.T) {
	result := fixtureResult(t)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "entries", ID: "q-1", Expect: map[string]any{
			"status": "completed",
		}},
	})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "final_state")
	assert.Contains(t, failures[0], "completed")
	assert.Contains(t, failures[0], "assigned")
}

func TestEvaluateAssertions_RowNotFound(t *testing.T) {
	result := fixtureResult(t)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "entries", ID: "q-404", Expect: map[string]any{
			"status": "pending",
		}},
	})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "row not found")
}

func TestEvaluateAssertions_OmittedFieldReportsAbsence(t *testing.T) {
	result := fixtureResult(t)

	// The entry was never completed, so completedAt is omitted from the
	// canonical encoding entirely.
	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Table: "entries", ID: "q-1", Expect: map[string]any{
			"completedAt": 9999,
		}},
	})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "not present")
}

func TestEvaluateAssertions_RowCountMismatch(t *testing.T) {
	result := fixtureResult(t)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertRowCount, Table: "sessions", Count: 2},
	})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "2 rows")
	assert.Contains(t, failures[0], "1 rows")
}

func TestEvaluateAssertions_FoldStatsMismatch(t *testing.T) {
	result := fixtureResult(t)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFoldStats, Expect: map[string]any{"rejected": 5}},
	})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "rejected = 5")
	assert.Contains(t, failures[0], "rejected = 0")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	result := fixtureResult(t)

	failures := EvaluateAssertions(result, []Assertion{
		{Type: "trace_contains"},
	})

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "unknown assertion type")
}

func TestValuesEqual(t *testing.T) {
	// Numbers coming out of the canonical snapshot are json.Number.
	snap, err := parseSnapshot(fixtureResult(t))
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	row := snap.Entries[0]

	assert.True(t, valuesEqual("q-1", row["id"]))
	assert.True(t, valuesEqual(3, row["priority"]))
	assert.True(t, valuesEqual(int64(2100), row["assignedAt"]))
	assert.False(t, valuesEqual(4, row["priority"]))
	assert.False(t, valuesEqual("3", row["priority"]), "string never matches a number")
	assert.False(t, valuesEqual(nil, row["id"]))
}
