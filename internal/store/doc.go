// Package store persists the append-only event log in SQLite.
//
// The log is the sole write path of the system. Appends are idempotent:
// a retried append of the same event id, or of the same (scope, writer,
// writerSeq) triple, lands exactly once and reports the seq the first
// attempt received. Reads return events in seq order, which is the
// total order every materializer fold depends on.
//
// Payloads are stored as canonical JSON (RFC 8785), so byte comparison
// of two logs is meaningful and replay is deterministic.
package store
