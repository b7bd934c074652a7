// Package schema validates raw event payloads against the v1 vocabulary
// using CUE definitions compiled once at startup.
//
// Typed payloads constructed in-process are checked structurally by
// event.Validate; this package guards the other boundary, where payloads
// arrive as raw JSON (CLI input, scenario files, external writers).
package schema

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/quillnb/quill/internal/event"
)

//go:embed payloads.cue
var payloadSchemas string

// Registry holds the compiled payload definitions, keyed by versioned
// event name. Compile once, validate many; cue.Value is safe for
// concurrent LookupPath and Unify.
type Registry struct {
	ctx  *cue.Context
	defs map[string]cue.Value
}

// NewRegistry compiles the embedded payload schemas.
func NewRegistry() (*Registry, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(payloadSchemas, cue.Filename("payloads.cue"))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	defs := make(map[string]cue.Value, len(event.KnownNames()))
	for _, name := range event.KnownNames() {
		_, base, err := event.ParseName(name)
		if err != nil {
			return nil, err
		}
		def := root.LookupPath(cue.ParsePath("#" + base))
		if !def.Exists() {
			return nil, fmt.Errorf("no schema definition for event %q", name)
		}
		defs[name] = def
	}

	return &Registry{ctx: ctx, defs: defs}, nil
}

// ValidatePayload checks a raw JSON payload against the schema for name.
// Returns event.ErrUnknownName (wrapped) for names outside the vocabulary
// so callers can choose skip-with-warning over rejection.
func (r *Registry) ValidatePayload(name string, raw []byte) error {
	def, ok := r.defs[name]
	if !ok {
		return fmt.Errorf("%w: %q", event.ErrUnknownName, name)
	}

	// JSON is a subset of CUE, so the raw payload compiles directly.
	data := r.ctx.CompileBytes(raw, cue.Filename("payload.json"))
	if err := data.Err(); err != nil {
		return &Error{Name: name, Message: "payload is not valid JSON", cause: formatCUEError(err)}
	}

	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return &Error{Name: name, Message: "payload rejected by schema", cause: formatCUEError(err)}
	}
	return nil
}

// Error reports a payload schema violation for one event name.
type Error struct {
	Name    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// posError carries CUE source position info through the error chain.
type posError struct {
	msg string
	pos token.Pos
}

func (e *posError) Error() string {
	if e.pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.Filename(), e.pos.Line(), e.pos.Column(), e.msg)
	}
	return e.msg
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &posError{msg: firstErr.Error(), pos: positions[0]}
	}
	return err
}
