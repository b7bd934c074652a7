// Package materialize derives table state from events.
//
// Step is a pure function of (prior rows, event payload). It never
// queries the store itself; the caller loads the rows an event may read
// with Load and applies the returned mutations. This split is what
// keeps the fold deterministic across replicas: everything Step can
// observe is either in the payload or in state previously derived from
// the same totally-ordered log.
//
// Guard clauses make replay idempotent. A claim on an entry that is no
// longer pending, a completion for a terminal entry, a heartbeat for an
// unknown session: all are silent no-ops, never errors. The only hard
// rejection is a malformed event, which is reported as a RejectError so
// the caller can log and skip it without halting the fold.
package materialize
