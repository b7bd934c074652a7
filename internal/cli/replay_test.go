package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_TextSummary(t *testing.T) {
	db := testDBPath(t)
	seedLog(t, db, "nb-1", lifecyclePayloads())

	out, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Scope: nb-1")
	assert.Contains(t, out, "applied 6, no-ops 0, rejected 0")
	assert.Contains(t, out, "Last seq: 6")
	assert.Contains(t, out, "Digest: ")
}

func TestReplay_JSONIncludesState(t *testing.T) {
	db := testDBPath(t)
	seedLog(t, db, "nb-1", lifecyclePayloads())

	out, err := executeCommand(t, "--format", "json", "replay", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scopes, 1)

	scope := resp.Data.Scopes[0]
	assert.Equal(t, "nb-1", scope.Scope)
	assert.Equal(t, 6, scope.Events)
	assert.Equal(t, 6, scope.Applied)
	assert.NotEmpty(t, scope.Digest)

	var derived struct {
		Entries []map[string]any `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(scope.State, &derived))
	require.Len(t, derived.Entries, 1)
	assert.Equal(t, "completed", derived.Entries[0]["status"])
}

func TestReplay_AllScopesWhenUnset(t *testing.T) {
	db := testDBPath(t)
	seedLog(t, db, "nb-a", lifecyclePayloads())
	seedLog(t, db, "nb-b", lifecyclePayloads())

	out, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Scope: nb-a")
	assert.Contains(t, out, "Scope: nb-b")
}

func TestReplay_UnknownScopeIsCommandError(t *testing.T) {
	db := testDBPath(t)
	seedLog(t, db, "nb-1", lifecyclePayloads())

	_, err := executeCommand(t, "replay", "--db", db, "--scope", "nb-404")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestReplay_MissingDatabaseIsCommandError(t *testing.T) {
	_, err := executeCommand(t, "replay", "--db", filepath.Join(t.TempDir(), "missing", "no.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
