package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/schema"
	"github.com/quillnb/quill/internal/state"
	"github.com/quillnb/quill/internal/store"
	"github.com/quillnb/quill/internal/testutil"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	log, err := store.Open(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	schemas, err := schema.NewRegistry()
	require.NoError(t, err)

	return New("nb-1", "writer-a", log, state.NewStore(), schemas,
		WithIDGenerator(testutil.NewSequentialIDGenerator("evt")),
		WithNow(testutil.FixedNow(1_700_000_000_000)),
	)
}

func TestEngine_ProcessAppendsAndFolds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	env, ok := e.Submit(event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1", Priority: 2})
	require.True(t, ok)
	require.NoError(t, e.process(ctx, env))

	entry, found := e.State().Entry("q1")
	require.True(t, found)
	assert.Equal(t, state.EntryPending, entry.Status)
	assert.Equal(t, int64(1_700_000_000_000), entry.RequestedAt)

	cell, found := e.State().Cell("c1")
	require.True(t, found)
	assert.Equal(t, state.CellQueued, cell.State)
}

func TestEngine_SubmitStampsEnvelope(t *testing.T) {
	e := newTestEngine(t)

	env1, ok := e.Submit(event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1"})
	require.True(t, ok)
	env2, ok := e.Submit(event.ExecutionRequested{QueueID: "q2", CellID: "c2", RequestedBy: "u1"})
	require.True(t, ok)

	assert.Equal(t, "evt-000001", env1.ID)
	assert.Equal(t, "evt-000002", env2.ID)
	assert.Equal(t, "nb-1", env1.Scope)
	assert.Equal(t, "writer-a", env1.WriterID)
	assert.Equal(t, int64(1), env1.WriterSeq)
	assert.Equal(t, int64(2), env2.WriterSeq)
	assert.Zero(t, env1.Seq, "seq is assigned by the log, not the submitter")
}

func TestEngine_DuplicateProcessIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	env, ok := e.Submit(event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1"})
	require.True(t, ok)
	require.NoError(t, e.process(ctx, env))

	before, err := e.State().Digest()
	require.NoError(t, err)

	// A retry of the same envelope dedupes in the log and folds nothing.
	require.NoError(t, e.process(ctx, env))

	after, err := e.State().Digest()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEngine_CatchUpFoldsExistingLog(t *testing.T) {
	log, err := store.Open(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	schemas, err := schema.NewRegistry()
	require.NoError(t, err)

	ctx := context.Background()

	// Another writer already appended history.
	_, _, err = log.Append(ctx, event.Envelope{
		ID: "old-1", Name: event.NameExecutionRequested, Scope: "nb-1",
		Timestamp: 1000, WriterID: "writer-b", WriterSeq: 1,
		Payload: event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1"},
	})
	require.NoError(t, err)
	_, _, err = log.Append(ctx, event.Envelope{
		ID: "old-2", Name: event.NameExecutionAssigned, Scope: "nb-1",
		Timestamp: 1100, WriterID: "writer-b", WriterSeq: 2,
		Payload: event.ExecutionAssigned{QueueID: "q1", RuntimeSessionID: "s1", AssignedAt: 1100},
	})
	require.NoError(t, err)

	e := New("nb-1", "writer-a", log, state.NewStore(), schemas)
	require.NoError(t, e.CatchUp(ctx))

	entry, found := e.State().Entry("q1")
	require.True(t, found)
	assert.Equal(t, state.EntryAssigned, entry.Status)
	assert.Equal(t, "s1", entry.AssignedSession)
}

func TestEngine_ProcessFoldsInterleavedWriters(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	env, ok := e.Submit(event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1"})
	require.True(t, ok)
	require.NoError(t, e.process(ctx, env))

	// Another writer claims q1 directly in the log.
	_, _, err := e.log.Append(ctx, event.Envelope{
		ID: "rival-1", Name: event.NameExecutionAssigned, Scope: "nb-1",
		Timestamp: 1100, WriterID: "writer-b", WriterSeq: 1,
		Payload: event.ExecutionAssigned{QueueID: "q1", RuntimeSessionID: "s-rival", AssignedAt: 1100},
	})
	require.NoError(t, err)

	// Our next append folds the rival's event first (seq order).
	env2, ok := e.Submit(event.ExecutionCancelled{QueueID: "q1", CancelledBy: "u1", Reason: "user", CancelledAt: 1200})
	require.True(t, ok)
	require.NoError(t, e.process(ctx, env2))

	entry, _ := e.State().Entry("q1")
	assert.Equal(t, state.EntryCancelled, entry.Status, "cancel lands after the rival claim")
}

func TestEngine_SubmitRawValidatesAtBoundary(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.SubmitRaw(event.NameExecutionRequested, []byte(`{"cellId":"c1","requestedBy":"u1","priority":0}`))
	require.Error(t, err)
	assert.True(t, IsRejectedEvent(err))

	_, err = e.SubmitRaw("v1.SomethingNew", []byte(`{}`))
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownEvent, re.Code)

	env, err := e.SubmitRaw(event.NameExecutionRequested, []byte(`{"queueId":"q1","cellId":"c1","requestedBy":"u1","priority":0}`))
	require.NoError(t, err)
	assert.Equal(t, event.NameExecutionRequested, env.Name)
}

func TestEngine_RunProcessesSubmissions(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	_, ok := e.Submit(event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1"})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, found := e.State().Entry("q1")
		return found
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestEngine_StopClosesQueue(t *testing.T) {
	e := newTestEngine(t)
	e.Stop()

	_, ok := e.Submit(event.ExecutionRequested{QueueID: "q1", CellID: "c1", RequestedBy: "u1"})
	assert.False(t, ok)
}
