package event

// Envelope wraps a payload with the metadata every logged event carries.
//
// ID is globally unique (UUIDv7 in production, fixed generator in tests).
// WriterID and WriterSeq identify the appending process and its per-writer
// sequence number; together they deduplicate writer retries. Seq is the
// global position in the scope's total order and is assigned by the log at
// append time - it is zero on an envelope that has not been appended yet.
//
// Timestamp is unix milliseconds and is DATA ONLY. Ordering always comes
// from Seq; two replicas folding the same Seq order must derive identical
// state regardless of wall time.
type Envelope struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`  // versioned, e.g. "v1.ExecutionRequested"
	Scope     string  `json:"scope"` // notebook id; partitions the total order
	Timestamp int64   `json:"timestamp"`
	WriterID  string  `json:"writerId"`
	WriterSeq int64   `json:"writerSeq"`
	Seq       int64   `json:"seq,omitempty"`
	Payload   Payload `json:"payload"`
}

// Payload is a sealed interface over the versioned event payload types.
// Only types in this package implement it, which keeps type switches in
// the materializer exhaustive.
type Payload interface {
	EventName() string
	payload() // sealed
}

// Capabilities declares what a runtime session can execute.
type Capabilities struct {
	CanExecuteCode bool `json:"canExecuteCode"`
	CanExecuteSQL  bool `json:"canExecuteSql"`
	CanExecuteAI   bool `json:"canExecuteAi"`
}

// ExecutionRequested enqueues one execution for a cell.
type ExecutionRequested struct {
	QueueID     string `json:"queueId"`
	CellID      string `json:"cellId"`
	RequestedBy string `json:"requestedBy"`
	Priority    int64  `json:"priority"` // higher = more urgent
}

// ExecutionAssigned is a runtime session's claim on a queue entry.
// Whichever claim lands first in the merged log wins; later claims for the
// same entry are silent no-ops under the materializer guard.
type ExecutionAssigned struct {
	QueueID          string `json:"queueId"`
	RuntimeSessionID string `json:"runtimeSessionId"`
	AssignedAt       int64  `json:"assignedAt"`
}

// ExecutionStarted marks the winning session beginning work.
type ExecutionStarted struct {
	QueueID          string `json:"queueId"`
	CellID           string `json:"cellId"`
	RuntimeSessionID string `json:"runtimeSessionId"`
	StartedAt        int64  `json:"startedAt"`
}

// ExecutionCompleted reports the outcome of an execution.
// Status is "success" or "error"; an error outcome is expected and
// recoverable - it does not affect queue or session invariants.
type ExecutionCompleted struct {
	QueueID     string `json:"queueId"`
	CellID      string `json:"cellId"`
	Status      string `json:"status"` // "success" | "error"
	CompletedAt int64  `json:"completedAt"`
	Error       string `json:"error,omitempty"`
}

// ExecutionCancelled cancels a non-terminal queue entry.
type ExecutionCancelled struct {
	QueueID     string `json:"queueId"`
	CancelledBy string `json:"cancelledBy"`
	Reason      string `json:"reason"`
	CancelledAt int64  `json:"cancelledAt"`
}

// RuntimeSessionStarted announces a live compute process.
// SessionID is unique per process start and never reused; RuntimeID is the
// stable identity across restarts of "the same" runtime.
type RuntimeSessionStarted struct {
	SessionID    string       `json:"sessionId"`
	RuntimeID    string       `json:"runtimeId"`
	Capabilities Capabilities `json:"capabilities"`
}

// RuntimeSessionHeartbeat is the periodic liveness signal. Absence of
// heartbeats is the only failure signal - there is no crash event.
type RuntimeSessionHeartbeat struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"` // "ready" | "busy"
}

// RuntimeSessionTerminated closes a session. Terminal: no further events
// are accepted for the session id.
type RuntimeSessionTerminated struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"` // "shutdown" | "restart" | "error" | "timeout"
}

func (ExecutionRequested) payload()       {}
func (ExecutionAssigned) payload()        {}
func (ExecutionStarted) payload()         {}
func (ExecutionCompleted) payload()       {}
func (ExecutionCancelled) payload()       {}
func (RuntimeSessionStarted) payload()    {}
func (RuntimeSessionHeartbeat) payload()  {}
func (RuntimeSessionTerminated) payload() {}

func (ExecutionRequested) EventName() string       { return NameExecutionRequested }
func (ExecutionAssigned) EventName() string        { return NameExecutionAssigned }
func (ExecutionStarted) EventName() string         { return NameExecutionStarted }
func (ExecutionCompleted) EventName() string       { return NameExecutionCompleted }
func (ExecutionCancelled) EventName() string       { return NameExecutionCancelled }
func (RuntimeSessionStarted) EventName() string    { return NameRuntimeSessionStarted }
func (RuntimeSessionHeartbeat) EventName() string  { return NameRuntimeSessionHeartbeat }
func (RuntimeSessionTerminated) EventName() string { return NameRuntimeSessionTerminated }

// Completion status values for ExecutionCompleted.
const (
	CompletionSuccess = "success"
	CompletionError   = "error"
)

// Heartbeat status values for RuntimeSessionHeartbeat.
const (
	HeartbeatReady = "ready"
	HeartbeatBusy  = "busy"
)

// Termination reasons for RuntimeSessionTerminated.
const (
	TerminatedShutdown = "shutdown"
	TerminatedRestart  = "restart"
	TerminatedError    = "error"
	TerminatedTimeout  = "timeout"
)
