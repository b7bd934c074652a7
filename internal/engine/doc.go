// Package engine runs the per-scope materialization loop.
//
// Each notebook scope gets one Engine: a single-writer goroutine that
// appends submitted events to the log, folds them into derived state,
// and signals subscribers. All state mutation happens on that one
// goroutine; external callers only enqueue.
//
// Engines are owned by a Registry constructed once per process and
// passed explicitly. There is no module-level registry: whoever needs
// an engine gets handed the Registry that owns it.
package engine
