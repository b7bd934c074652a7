package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while processing an event.
//
// Runtime errors include:
//   - Rejected event: payload failed validation at the fold boundary
//   - Append failure: the log write itself failed
//   - Unknown event: name outside this engine's vocabulary
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Scope identifies the affected notebook scope.
	Scope string

	// EventID identifies the offending event, when known.
	EventID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEventRejected indicates a malformed payload was skipped.
	ErrCodeEventRejected RuntimeErrorCode = "EVENT_REJECTED"

	// ErrCodeAppendFailed indicates the log append did not succeed.
	ErrCodeAppendFailed RuntimeErrorCode = "APPEND_FAILED"

	// ErrCodeUnknownEvent indicates an event name outside the vocabulary.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Scope != "" && e.EventID != "" {
		return fmt.Sprintf("%s: %s (scope=%s, event=%s)", e.Code, e.Message, e.Scope, e.EventID)
	}
	if e.Scope != "" {
		return fmt.Sprintf("%s: %s (scope=%s)", e.Code, e.Message, e.Scope)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRejectedEvent returns true if the error is a validation rejection.
// Uses errors.As to handle wrapped errors.
func IsRejectedEvent(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeEventRejected
	}
	return false
}

// IsAppendFailure returns true if the error is a failed log write.
// Uses errors.As to handle wrapped errors.
func IsAppendFailure(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeAppendFailed
	}
	return false
}
