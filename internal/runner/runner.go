// Package runner is the runtime session side of the protocol: it
// announces a session, heartbeats, claims pending queue entries, and
// reports execution outcomes - all by appending events through the
// scope's engine. It holds no authority of its own; whether a claim won
// is read back from derived state, never assumed.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quillnb/quill/internal/engine"
	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/state"
)

// Executor runs one claimed execution. Implemented by the embedding
// host (code kernel, SQL runner, AI provider bridge).
//
// The context is cancelled when the entry is cancelled or the runner
// shuts down; abort is best-effort and the executor should return
// promptly on cancellation. A nil return reports success; an error
// return reports an execution failure, which is an expected outcome,
// not a protocol fault.
type Executor interface {
	Execute(ctx context.Context, entry state.QueueEntry) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, entry state.QueueEntry) error

func (f ExecutorFunc) Execute(ctx context.Context, entry state.QueueEntry) error {
	return f(ctx, entry)
}

// DefaultHeartbeatInterval is how often a live session heartbeats.
const DefaultHeartbeatInterval = 5 * time.Second

// Runner drives one runtime session.
//
// One execution runs at a time. The claim loop only claims when idle,
// and the heartbeat reports busy while work is in flight.
type Runner struct {
	eng       *engine.Engine
	exec      Executor
	sessionID string
	runtimeID string
	caps      event.Capabilities
	interval  time.Duration
	now       func() int64
	logger    *slog.Logger

	mu       sync.Mutex
	current  string             // queue id in flight, "" when idle
	abort    context.CancelFunc // cancels the in-flight execution
	claimed  map[string]bool    // claims submitted, outcome not yet observed
	finished map[string]bool    // entries this runner fully handled
}

// Option configures a Runner.
type Option func(*Runner)

// WithHeartbeatInterval overrides the heartbeat period.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithNow overrides the wall clock used in payload timestamps.
func WithNow(now func() int64) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a runner for one session.
//
// sessionID must be unique per process start and never reused;
// runtimeID is the stable identity across restarts.
func New(eng *engine.Engine, exec Executor, sessionID, runtimeID string, caps event.Capabilities, opts ...Option) *Runner {
	r := &Runner{
		eng:       eng,
		exec:      exec,
		sessionID: sessionID,
		runtimeID: runtimeID,
		caps:      caps,
		interval:  DefaultHeartbeatInterval,
		now:       func() int64 { return time.Now().UnixMilli() },
		logger:    slog.Default(),
		claimed:   make(map[string]bool),
		finished:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SessionID returns the session identity this runner announces.
func (r *Runner) SessionID() string { return r.sessionID }

// Run announces the session and serves until the context is cancelled.
// On shutdown it appends a termination event and waits for any in-flight
// execution to observe its cancelled context.
func (r *Runner) Run(ctx context.Context) error {
	r.eng.Submit(event.RuntimeSessionStarted{
		SessionID:    r.sessionID,
		RuntimeID:    r.runtimeID,
		Capabilities: r.caps,
	})
	r.heartbeat()

	changes, unsubscribe := r.eng.State().Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()

		case <-ticker.C:
			r.heartbeat()
			r.observe(ctx)

		case <-changes:
			r.observe(ctx)
		}
	}
}

// heartbeat reports liveness, busy while an execution is in flight.
func (r *Runner) heartbeat() {
	r.mu.Lock()
	busy := r.current != ""
	r.mu.Unlock()

	status := event.HeartbeatReady
	if busy {
		status = event.HeartbeatBusy
	}
	r.eng.Submit(event.RuntimeSessionHeartbeat{SessionID: r.sessionID, Status: status})
}

// observe reacts to the current derived state: aborts cancelled work,
// starts work we won, and claims the next pending entry when idle.
func (r *Runner) observe(ctx context.Context) {
	st := r.eng.State()

	// Abort in-flight work the log has cancelled or reassigned.
	r.mu.Lock()
	if r.current != "" {
		if entry, ok := st.Entry(r.current); ok {
			if entry.Status == state.EntryCancelled || (entry.AssignedSession != "" && entry.AssignedSession != r.sessionID) {
				r.logger.Info("aborting execution",
					"queueId", r.current,
					"status", entry.Status)
				r.abort()
			}
		}
	}
	busy := r.current != ""
	r.mu.Unlock()

	// Did a submitted claim win? The derived state is the only answer.
	for id := range r.snapshotClaims() {
		entry, ok := st.Entry(id)
		if !ok || entry.Status == state.EntryPending {
			continue // claim not folded yet
		}
		r.forgetClaim(id)
		if entry.Status == state.EntryAssigned && entry.AssignedSession == r.sessionID && !busy {
			r.start(ctx, entry)
			busy = true
		}
		// Any other outcome: we lost the race or the entry moved on.
	}

	if busy {
		return
	}

	// Claim the top pending candidate.
	for _, entry := range st.PendingEntries() {
		if r.hasClaim(entry.ID) || r.isFinished(entry.ID) {
			continue
		}
		r.rememberClaim(entry.ID)
		r.eng.Submit(event.ExecutionAssigned{
			QueueID:          entry.ID,
			RuntimeSessionID: r.sessionID,
			AssignedAt:       r.now(),
		})
		break
	}
}

// start launches the execution worker for an entry this session won.
func (r *Runner) start(ctx context.Context, entry state.QueueEntry) {
	execCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.current = entry.ID
	r.abort = cancel
	r.mu.Unlock()

	r.eng.Submit(event.ExecutionStarted{
		QueueID:          entry.ID,
		CellID:           entry.CellID,
		RuntimeSessionID: r.sessionID,
		StartedAt:        r.now(),
	})

	go func() {
		defer cancel()
		err := r.exec.Execute(execCtx, entry)

		r.mu.Lock()
		r.current = ""
		r.abort = nil
		r.finished[entry.ID] = true
		r.mu.Unlock()

		if execCtx.Err() != nil {
			// Aborted: the cancel event already decided the entry's
			// fate, a completion would be a stale no-op anyway.
			r.logger.Info("execution aborted", "queueId", entry.ID)
			return
		}

		completed := event.ExecutionCompleted{
			QueueID:     entry.ID,
			CellID:      entry.CellID,
			Status:      event.CompletionSuccess,
			CompletedAt: r.now(),
		}
		if err != nil {
			completed.Status = event.CompletionError
			completed.Error = err.Error()
		}
		r.eng.Submit(completed)
	}()
}

// shutdown closes the session: abort in-flight work, then terminate.
func (r *Runner) shutdown() {
	r.mu.Lock()
	if r.abort != nil {
		r.abort()
	}
	r.mu.Unlock()

	r.eng.Submit(event.RuntimeSessionTerminated{
		SessionID: r.sessionID,
		Reason:    event.TerminatedShutdown,
	})
}

func (r *Runner) snapshotClaims() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.claimed))
	for id := range r.claimed {
		out[id] = true
	}
	return out
}

func (r *Runner) hasClaim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimed[id]
}

func (r *Runner) rememberClaim(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimed[id] = true
}

func (r *Runner) forgetClaim(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, id)
}

func (r *Runner) isFinished(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished[id]
}
