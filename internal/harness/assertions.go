package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries enough
// context to debug the failure without re-running the scenario.
type AssertionError struct {
	Type     string // assertion type for categorization
	Expected string // human-readable expected outcome
	Actual   string // human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// snapshot is the parsed canonical state, the same bytes golden files
// capture. Assertions read it instead of the live store so field names
// in scenarios match the canonical encoding exactly.
type snapshot struct {
	LastSeq  int64            `json:"lastSeq"`
	Entries  []map[string]any `json:"entries"`
	Sessions []map[string]any `json:"sessions"`
	Cells    []map[string]any `json:"cells"`
}

func parseSnapshot(result *Result) (*snapshot, error) {
	data, err := result.State.CanonicalState()
	if err != nil {
		return nil, fmt.Errorf("canonical state: %w", err)
	}

	// UseNumber keeps integers exact instead of round-tripping through
	// float64.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var snap snapshot
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("parse canonical state: %w", err)
	}
	return &snap, nil
}

func (s *snapshot) table(name string) []map[string]any {
	switch name {
	case tableEntries:
		return s.Entries
	case tableSessions:
		return s.Sessions
	case tableCells:
		return s.Cells
	}
	return nil
}

// rowKeyFor returns the id field each table is keyed by.
func rowKeyFor(table string) string {
	if table == tableSessions {
		return "sessionId"
	}
	return "id"
}

// assertFinalState looks up one row by id and checks expected values
// with subset semantics: only the listed fields are compared.
func assertFinalState(snap *snapshot, assertion Assertion) error {
	key := rowKeyFor(assertion.Table)

	var row map[string]any
	for _, candidate := range snap.table(assertion.Table) {
		if candidate[key] == assertion.ID {
			row = candidate
			break
		}
	}
	if row == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s with %s=%q", assertion.Table, key, assertion.ID),
			Actual:   "row not found",
		}
	}

	for field, expected := range assertion.Expect {
		actual, exists := row[field]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s[%s].%s = %v", assertion.Table, assertion.ID, field, expected),
				Actual:   fmt.Sprintf("field %q not present (omitted fields are empty)", field),
			}
		}
		if !valuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s[%s].%s = %v", assertion.Table, assertion.ID, field, expected),
				Actual:   fmt.Sprintf("%v", actual),
			}
		}
	}

	return nil
}

// assertRowCount checks the number of rows in a derived table.
func assertRowCount(snap *snapshot, assertion Assertion) error {
	got := len(snap.table(assertion.Table))
	if got != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", assertion.Count, assertion.Table),
			Actual:   fmt.Sprintf("%d rows", got),
		}
	}
	return nil
}

// assertFoldStats checks the fold counters with subset semantics.
func assertFoldStats(result *Result, assertion Assertion) error {
	actual := map[string]int{
		"applied":  result.Stats.Applied,
		"noOps":    result.Stats.NoOps,
		"rejected": result.Stats.Rejected,
	}
	for key, expected := range assertion.Expect {
		want, ok := expectedInt(expected)
		if !ok {
			return &AssertionError{
				Type:     AssertFoldStats,
				Expected: fmt.Sprintf("%s to be an integer", key),
				Actual:   fmt.Sprintf("%v", expected),
			}
		}
		if want != int64(actual[key]) {
			return &AssertionError{
				Type:     AssertFoldStats,
				Expected: fmt.Sprintf("%s = %d", key, want),
				Actual:   fmt.Sprintf("%s = %d", key, actual[key]),
			}
		}
	}
	return nil
}

func expectedInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// valuesEqual compares a scenario-supplied value against a value parsed
// from the canonical state. YAML integers meet json.Number here, so
// numeric comparison goes through int64.
func valuesEqual(expected, actual any) bool {
	switch exp := expected.(type) {
	case string:
		actualStr, ok := actual.(string)
		return ok && exp == actualStr
	case bool:
		actualBool, ok := actual.(bool)
		return ok && exp == actualBool
	case int:
		return numberEquals(actual, int64(exp))
	case int64:
		return numberEquals(actual, exp)
	case map[string]any:
		actualMap, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		// Subset semantics apply to nested objects too.
		for key, val := range exp {
			nested, exists := actualMap[key]
			if !exists || !valuesEqual(val, nested) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func numberEquals(actual any, expected int64) bool {
	num, ok := actual.(json.Number)
	if !ok {
		return false
	}
	got, err := num.Int64()
	return err == nil && got == expected
}

// EvaluateAssertions evaluates every assertion against the result and
// returns one message per failure. An empty slice means the scenario
// passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	snap, err := parseSnapshot(result)
	if err != nil {
		return []string{err.Error()}
	}

	var failures []string
	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(snap, assertion)
		case AssertRowCount:
			err = assertRowCount(snap, assertion)
		case AssertFoldStats:
			err = assertFoldStats(result, assertion)
		default:
			err = fmt.Errorf("assertions[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
