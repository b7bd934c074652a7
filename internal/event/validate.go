package event

import (
	"fmt"
)

// Validation error codes (E100-E199).
const (
	// Envelope errors (E100-E109)
	ErrEnvelopeNoID     = "E100" // id is required
	ErrEnvelopeBadName  = "E101" // malformed event name
	ErrEnvelopeNoScope  = "E102" // scope is required
	ErrEnvelopeNoWriter = "E103" // writerId is required
	ErrEnvelopeNoPay    = "E104" // payload is required

	// Payload errors (E110-E119)
	ErrPayloadMissingField = "E110" // required identifier missing
	ErrPayloadBadEnum      = "E111" // value outside allowed set
)

// ValidationError reports one schema violation found at the log boundary.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks an envelope and its payload structurally.
// Returns all errors found (does not fail-fast). A malformed event is
// rejected at the materializer boundary and skipped; it never halts the
// fold or corrupts unrelated state.
func Validate(env Envelope) []ValidationError {
	var errs []ValidationError

	if env.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "id is required", Code: ErrEnvelopeNoID})
	}
	if _, _, err := ParseName(env.Name); err != nil {
		errs = append(errs, ValidationError{Field: "name", Message: err.Error(), Code: ErrEnvelopeBadName})
	}
	if env.Scope == "" {
		errs = append(errs, ValidationError{Field: "scope", Message: "scope is required", Code: ErrEnvelopeNoScope})
	}
	if env.WriterID == "" {
		errs = append(errs, ValidationError{Field: "writerId", Message: "writerId is required", Code: ErrEnvelopeNoWriter})
	}
	if env.Payload == nil {
		errs = append(errs, ValidationError{Field: "payload", Message: "payload is required", Code: ErrEnvelopeNoPay})
		return errs
	}

	errs = append(errs, validatePayload(env.Payload)...)
	return errs
}

// validatePayload checks the identifiers and enums the materializer
// depends on. CUE handles shape validation for raw JSON at the schema
// boundary; this covers typed payloads constructed in-process.
func validatePayload(p Payload) []ValidationError {
	var errs []ValidationError

	require := func(field, val string) {
		if val == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: field + " is required",
				Code:    ErrPayloadMissingField,
			})
		}
	}
	enum := func(field, val string, allowed ...string) {
		for _, a := range allowed {
			if val == a {
				return
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid value %q, must be one of %v", val, allowed),
			Code:    ErrPayloadBadEnum,
		})
	}

	switch v := p.(type) {
	case ExecutionRequested:
		require("queueId", v.QueueID)
		require("cellId", v.CellID)
		require("requestedBy", v.RequestedBy)
	case ExecutionAssigned:
		require("queueId", v.QueueID)
		require("runtimeSessionId", v.RuntimeSessionID)
	case ExecutionStarted:
		require("queueId", v.QueueID)
		require("cellId", v.CellID)
		require("runtimeSessionId", v.RuntimeSessionID)
	case ExecutionCompleted:
		require("queueId", v.QueueID)
		require("cellId", v.CellID)
		enum("status", v.Status, CompletionSuccess, CompletionError)
	case ExecutionCancelled:
		require("queueId", v.QueueID)
		require("cancelledBy", v.CancelledBy)
	case RuntimeSessionStarted:
		require("sessionId", v.SessionID)
		require("runtimeId", v.RuntimeID)
	case RuntimeSessionHeartbeat:
		require("sessionId", v.SessionID)
		enum("status", v.Status, HeartbeatReady, HeartbeatBusy)
	case RuntimeSessionTerminated:
		require("sessionId", v.SessionID)
		enum("reason", v.Reason, TerminatedShutdown, TerminatedRestart, TerminatedError, TerminatedTimeout)
	}

	return errs
}
