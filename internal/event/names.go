package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Event names, versioned as "v<major>.<PascalCaseName>". A major version
// bump means the payload shape changed incompatibly; materializers key on
// the full versioned name.
const (
	NameExecutionRequested       = "v1.ExecutionRequested"
	NameExecutionAssigned        = "v1.ExecutionAssigned"
	NameExecutionStarted         = "v1.ExecutionStarted"
	NameExecutionCompleted       = "v1.ExecutionCompleted"
	NameExecutionCancelled       = "v1.ExecutionCancelled"
	NameRuntimeSessionStarted    = "v1.RuntimeSessionStarted"
	NameRuntimeSessionHeartbeat  = "v1.RuntimeSessionHeartbeat"
	NameRuntimeSessionTerminated = "v1.RuntimeSessionTerminated"
)

// ErrUnknownName reports an event name this engine version does not know.
// Unknown events are skipped with a warning, never treated as corruption -
// a newer writer may be appending event types we have not learned yet.
var ErrUnknownName = errors.New("unknown event name")

// namePattern matches "v<major>.<PascalCaseName>".
var namePattern = regexp.MustCompile(`^v([0-9]+)\.([A-Z][A-Za-z0-9]*)$`)

// ParseName splits a versioned event name into major version and base name.
func ParseName(name string) (version int, base string, err error) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", fmt.Errorf("malformed event name %q: want v<major>.<PascalCaseName>", name)
	}
	version, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("malformed event name %q: %w", name, err)
	}
	return version, m[2], nil
}

// KnownNames returns all event names this engine version materializes,
// in a stable order.
func KnownNames() []string {
	return []string{
		NameExecutionRequested,
		NameExecutionAssigned,
		NameExecutionStarted,
		NameExecutionCompleted,
		NameExecutionCancelled,
		NameRuntimeSessionStarted,
		NameRuntimeSessionHeartbeat,
		NameRuntimeSessionTerminated,
	}
}

// DecodePayload parses raw JSON into the typed payload for name.
// Returns ErrUnknownName (wrapped) for names outside the known vocabulary.
// Unknown fields are rejected so that a payload-shape drift between writer
// and reader surfaces at the boundary instead of as silent zero values.
func DecodePayload(name string, data []byte) (Payload, error) {
	var p Payload
	switch name {
	case NameExecutionRequested:
		p = &ExecutionRequested{}
	case NameExecutionAssigned:
		p = &ExecutionAssigned{}
	case NameExecutionStarted:
		p = &ExecutionStarted{}
	case NameExecutionCompleted:
		p = &ExecutionCompleted{}
	case NameExecutionCancelled:
		p = &ExecutionCancelled{}
	case NameRuntimeSessionStarted:
		p = &RuntimeSessionStarted{}
	case NameRuntimeSessionHeartbeat:
		p = &RuntimeSessionHeartbeat{}
	case NameRuntimeSessionTerminated:
		p = &RuntimeSessionTerminated{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return deref(p), nil
}

// deref unwraps the pointer DecodePayload needed for json.Decode, so the
// rest of the engine works with value payloads.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *ExecutionRequested:
		return *v
	case *ExecutionAssigned:
		return *v
	case *ExecutionStarted:
		return *v
	case *ExecutionCompleted:
		return *v
	case *ExecutionCancelled:
		return *v
	case *RuntimeSessionStarted:
		return *v
	case *RuntimeSessionHeartbeat:
		return *v
	case *RuntimeSessionTerminated:
		return *v
	default:
		return p
	}
}
