package cli

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/store"
)

// executeCommand runs the root command with args and captures output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// seedLog writes payloads to a fresh log at path, one writer, one scope.
func seedLog(t *testing.T, path, scope string, payloads []event.Payload) {
	t.Helper()

	log, err := store.Open(path)
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	for i, p := range payloads {
		_, _, err := log.Append(ctx, event.Envelope{
			ID:        fmt.Sprintf("seed-%s-%06d", scope, i+1),
			Name:      p.EventName(),
			Scope:     scope,
			Timestamp: int64(1000 * (i + 1)),
			WriterID:  "seeder",
			WriterSeq: int64(i + 1),
			Payload:   p,
		})
		require.NoError(t, err)
	}
}

// lifecyclePayloads is a request claimed and completed by one session.
func lifecyclePayloads() []event.Payload {
	return []event.Payload{
		event.RuntimeSessionStarted{SessionID: "sess-1", RuntimeID: "rt-1", Capabilities: event.Capabilities{CanExecuteCode: true}},
		event.RuntimeSessionHeartbeat{SessionID: "sess-1", Status: event.HeartbeatReady},
		event.ExecutionRequested{QueueID: "q-1", CellID: "cell-1", RequestedBy: "user-1"},
		event.ExecutionAssigned{QueueID: "q-1", RuntimeSessionID: "sess-1", AssignedAt: 4000},
		event.ExecutionStarted{QueueID: "q-1", CellID: "cell-1", RuntimeSessionID: "sess-1", StartedAt: 5000},
		event.ExecutionCompleted{QueueID: "q-1", CellID: "cell-1", Status: event.CompletionSuccess, CompletedAt: 6000},
	}
}

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "quill.db")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	out, err := executeCommand(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"validate", "replay", "check", "orphans"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	db := testDBPath(t)
	seedLog(t, db, "nb-1", lifecyclePayloads())

	_, err := executeCommand(t, "--format", "yaml", "replay", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("plain error")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "wrapped", fmt.Errorf("cause"))))
}
