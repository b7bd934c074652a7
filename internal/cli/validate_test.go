package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEventFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_ValidDocument(t *testing.T) {
	path := writeEventFile(t, `{
		"name": "v1.ExecutionRequested",
		"payload": {"queueId": "q-1", "cellId": "c-1", "requestedBy": "u-1", "priority": 0}
	}`)

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "v1.ExecutionRequested")
}

func TestValidate_InvalidPayloadFailsWithExitOne(t *testing.T) {
	path := writeEventFile(t, `{
		"name": "v1.RuntimeSessionHeartbeat",
		"payload": {"sessionId": "s-1", "status": "sleeping"}
	}`)

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
}

func TestValidate_MixedInputsReportPerFile(t *testing.T) {
	good := writeEventFile(t, `{
		"name": "v1.RuntimeSessionHeartbeat",
		"payload": {"sessionId": "s-1", "status": "ready"}
	}`)
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{
		"name": "v1.ExecutionRequested",
		"payload": {"cellId": "c-1", "requestedBy": "u-1", "priority": 0}
	}`), 0o644))

	out, err := executeCommand(t, "validate", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ "+good)
	assert.Contains(t, out, "✗ "+bad)
}

func TestValidate_JSONOutput(t *testing.T) {
	path := writeEventFile(t, `{
		"name": "v1.RuntimeSessionTerminated",
		"payload": {"sessionId": "s-1", "reason": "shutdown"}
	}`)

	out, err := executeCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_MalformedJSONIsCommandError(t *testing.T) {
	path := writeEventFile(t, `{not json`)

	_, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_MissingNameIsCommandError(t *testing.T) {
	path := writeEventFile(t, `{"payload": {"sessionId": "s-1", "status": "ready"}}`)

	_, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "missing event name")
}

func TestValidate_UnknownEventName(t *testing.T) {
	path := writeEventFile(t, `{"name": "v1.SomethingNew", "payload": {}}`)

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
}
