// Package harness executes YAML conformance scenarios against the full
// event pipeline: schema validation at the boundary, durable append,
// and a deterministic fold into derived state.
//
// A scenario is a fixed list of events with explicit timestamps and
// writers, plus assertions on the derived tables and fold statistics.
// Every run folds the log twice into independent stores and requires
// digest equality, so each scenario doubles as a determinism check.
// Golden files snapshot the canonical state bytes per scenario.
package harness
