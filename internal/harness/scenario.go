package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quillnb/quill/internal/event"
)

// Scenario defines a conformance test scenario: a sequence of events
// appended to a fresh log, then assertions on the derived state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scope is the notebook id all events are appended under.
	Scope string `yaml:"scope"`

	// Events are appended in order. Each step carries an explicit
	// timestamp and writer so runs are byte-for-byte reproducible.
	Events []EventStep `yaml:"events"`

	// Assertions validate the derived state and fold statistics.
	// Supported types: final_state, row_count, fold_stats.
	Assertions []Assertion `yaml:"assertions"`
}

// EventStep is one event submission.
type EventStep struct {
	// Name is the versioned event name (e.g. "v1.ExecutionRequested").
	Name string `yaml:"name"`

	// Writer identifies the appending process. Defaults to
	// "writer-harness"; writer sequence numbers are assigned per writer
	// in step order.
	Writer string `yaml:"writer,omitempty"`

	// At is the event timestamp in unix milliseconds. Data only; fold
	// order always comes from append order.
	At int64 `yaml:"at"`

	// Payload is the raw event payload. It passes through schema
	// validation exactly like an untrusted boundary submission.
	Payload map[string]any `yaml:"payload"`

	// Reject marks a payload that must be refused at the schema
	// boundary. Refused steps are never appended; a Reject step that
	// validates cleanly fails the run.
	Reject bool `yaml:"reject,omitempty"`
}

// Assertion validates derived state after the fold.
type Assertion struct {
	// Type is one of:
	//   - "final_state": look up a row by id and check expected values
	//   - "row_count": check the number of rows in a table
	//   - "fold_stats": check applied/noOps/rejected counters
	Type string `yaml:"type"`

	// Table is the derived table name: "entries", "sessions" or
	// "cells". Used by final_state and row_count.
	Table string `yaml:"table,omitempty"`

	// ID selects the row (used by final_state). Entries and cells are
	// keyed by "id", sessions by "sessionId".
	ID string `yaml:"id,omitempty"`

	// Expect contains expected field values. Subset match: only the
	// listed fields are checked. Field names follow the canonical state
	// encoding (e.g. "assignedRuntimeSession", "isActive"). For
	// fold_stats the keys are "applied", "noOps" and "rejected".
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected row count (used by row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
	AssertFoldStats  = "fold_stats"
)

// Derived table names usable in assertions. These are sections of the
// canonical state snapshot, not the mutation table identifiers.
const (
	tableEntries  = "entries"
	tableSessions = "sessions"
	tableCells    = "cells"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently weakening a
// scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Scope == "" {
		return fmt.Errorf("scope is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Events {
		if step.Name == "" {
			return fmt.Errorf("events[%d]: name is required", i)
		}
		if _, _, err := event.ParseName(step.Name); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if step.At <= 0 {
			return fmt.Errorf("events[%d]: at must be a positive unix-millisecond timestamp", i)
		}
		if step.Payload == nil {
			return fmt.Errorf("events[%d]: payload is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validAssertionTable(name string) bool {
	switch name {
	case tableEntries, tableSessions, tableCells:
		return true
	}
	return false
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if !validAssertionTable(a.Table) {
			return fmt.Errorf("assertions[%d]: table must be one of entries, sessions, cells (got %q)", index, a.Table)
		}
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if !validAssertionTable(a.Table) {
			return fmt.Errorf("assertions[%d]: table must be one of entries, sessions, cells (got %q)", index, a.Table)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertFoldStats:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for fold_stats", index)
		}
		for key := range a.Expect {
			switch key {
			case "applied", "noOps", "rejected":
			default:
				return fmt.Errorf("assertions[%d]: unknown fold_stats key %q", index, key)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
