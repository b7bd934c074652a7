package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validScenarioYAML = `name: test-scenario
description: loads cleanly
scope: nb-1
events:
  - name: v1.ExecutionRequested
    at: 1000
    payload:
      queueId: q-1
      cellId: c-1
      requestedBy: u-1
      priority: 0
assertions:
  - type: row_count
    table: entries
    count: 1
`

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenarioFile(t, validScenarioYAML)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test-scenario", scenario.Name)
	assert.Equal(t, "nb-1", scenario.Scope)
	require.Len(t, scenario.Events, 1)
	assert.Equal(t, int64(1000), scenario.Events[0].At)
	assert.Equal(t, "q-1", scenario.Events[0].Payload["queueId"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadScenario_RequiredFields(t *testing.T) {
	cases := map[string]string{
		"missing name": `description: d
scope: nb-1
events:
  - name: v1.RuntimeSessionHeartbeat
    at: 1
    payload: {sessionId: s, status: ready}
assertions:
  - {type: row_count, table: sessions, count: 1}
`,
		"missing scope": `name: n
description: d
events:
  - name: v1.RuntimeSessionHeartbeat
    at: 1
    payload: {sessionId: s, status: ready}
assertions:
  - {type: row_count, table: sessions, count: 1}
`,
		"no events": `name: n
description: d
scope: nb-1
events: []
assertions:
  - {type: row_count, table: sessions, count: 1}
`,
		"no assertions": `name: n
description: d
scope: nb-1
events:
  - name: v1.RuntimeSessionHeartbeat
    at: 1
    payload: {sessionId: s, status: ready}
assertions: []
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScenario(writeScenarioFile(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	content := `name: n
description: d
scope: nb-1
flow_token: oops
events:
  - name: v1.RuntimeSessionHeartbeat
    at: 1
    payload: {sessionId: s, status: ready}
assertions:
  - {type: row_count, table: sessions, count: 1}
`
	_, err := LoadScenario(writeScenarioFile(t, content))
	require.Error(t, err)
}

func TestLoadScenario_MalformedEventName(t *testing.T) {
	content := `name: n
description: d
scope: nb-1
events:
  - name: ExecutionRequested
    at: 1
    payload: {queueId: q, cellId: c, requestedBy: u, priority: 0}
assertions:
  - {type: row_count, table: entries, count: 1}
`
	_, err := LoadScenario(writeScenarioFile(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed event name")
}

func TestLoadScenario_EventTimestampRequired(t *testing.T) {
	content := `name: n
description: d
scope: nb-1
events:
  - name: v1.RuntimeSessionHeartbeat
    payload: {sessionId: s, status: ready}
assertions:
  - {type: row_count, table: sessions, count: 1}
`
	_, err := LoadScenario(writeScenarioFile(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at must be a positive")
}

func TestLoadScenario_AssertionValidation(t *testing.T) {
	cases := map[string]struct {
		assertion string
		wantErr   string
	}{
		"unknown type": {
			assertion: `- {type: trace_contains, table: entries, count: 1}`,
			wantErr:   "unknown assertion type",
		},
		"unknown table": {
			assertion: `- {type: row_count, table: widgets, count: 1}`,
			wantErr:   "table must be one of",
		},
		"final_state missing id": {
			assertion: `- {type: final_state, table: entries, expect: {status: pending}}`,
			wantErr:   "id is required",
		},
		"final_state missing expect": {
			assertion: `- {type: final_state, table: entries, id: q-1}`,
			wantErr:   "expect is required",
		},
		"row_count negative": {
			assertion: `- {type: row_count, table: entries, count: -1}`,
			wantErr:   "count must be non-negative",
		},
		"fold_stats unknown key": {
			assertion: `- {type: fold_stats, expect: {skipped: 1}}`,
			wantErr:   "unknown fold_stats key",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			content := `name: n
description: d
scope: nb-1
events:
  - name: v1.RuntimeSessionHeartbeat
    at: 1
    payload: {sessionId: s, status: ready}
assertions:
  ` + tc.assertion + "\n"
			_, err := LoadScenario(writeScenarioFile(t, content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
