package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)

			failures := EvaluateAssertions(result, scenario.Assertions)
			for _, failure := range failures {
				t.Error(failure)
			}
		})
	}
}

func TestRun_DigestStableAcrossRuns(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "lifecycle_success.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
}

func TestRun_RefusedStepsNeverReachTheLog(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "refused_malformed.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Len(t, result.Refused, 3)
	assert.Equal(t, int64(1), result.State.LastSeq(), "only the valid event is appended")
}

func TestRun_ValidPayloadMarkedRejectFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad-reject",
		Description: "reject marker on a valid payload",
		Scope:       "nb-1",
		Events: []EventStep{{
			Name:   "v1.RuntimeSessionHeartbeat",
			At:     1000,
			Reject: true,
			Payload: map[string]any{
				"sessionId": "sess-1",
				"status":    "ready",
			},
		}},
		Assertions: []Assertion{{Type: AssertRowCount, Table: "sessions", Count: 0}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marked reject but payload validated")
}

func TestRun_InvalidPayloadWithoutRejectFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad-payload",
		Description: "malformed payload without a reject marker",
		Scope:       "nb-1",
		Events: []EventStep{{
			Name: "v1.RuntimeSessionHeartbeat",
			At:   1000,
			Payload: map[string]any{
				"sessionId": "sess-1",
				"status":    "sleeping",
			},
		}},
		Assertions: []Assertion{{Type: AssertRowCount, Table: "sessions", Count: 0}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
}

func TestRun_WriterSeqsAssignedPerWriter(t *testing.T) {
	scenario := &Scenario{
		Name:        "writer-seqs",
		Description: "independent writers get independent sequences",
		Scope:       "nb-1",
		Events: []EventStep{
			{
				Name:   "v1.ExecutionRequested",
				Writer: "client-a",
				At:     1000,
				Payload: map[string]any{
					"queueId": "q-1", "cellId": "c-1", "requestedBy": "u-1", "priority": 0,
				},
			},
			{
				Name:   "v1.ExecutionRequested",
				Writer: "client-b",
				At:     1001,
				Payload: map[string]any{
					"queueId": "q-2", "cellId": "c-2", "requestedBy": "u-1", "priority": 0,
				},
			},
			{
				Name:   "v1.ExecutionRequested",
				Writer: "client-a",
				At:     1002,
				Payload: map[string]any{
					"queueId": "q-3", "cellId": "c-3", "requestedBy": "u-1", "priority": 0,
				},
			},
		},
		Assertions: []Assertion{{Type: AssertRowCount, Table: "entries", Count: 3}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	// Three distinct queue ids, so no dedup fired and all three landed.
	assert.Empty(t, EvaluateAssertions(result, scenario.Assertions))
	assert.Equal(t, int64(3), result.State.LastSeq())
}
