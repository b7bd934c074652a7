package state

// Table names for mutations and diagnostics.
const (
	TableEntries  = "queue_entries"
	TableSessions = "runtime_sessions"
	TableCells    = "cells"
)

// Mutation is a sealed interface over declarative table writes.
// The materializer returns mutations; Store.Apply executes them. The v1
// vocabulary only ever upserts - cancellation clears fields on the row
// rather than deleting it, so history stays queryable.
type Mutation interface {
	Table() string
	mutation() // sealed
}

// UpsertEntry writes a full queue entry row.
type UpsertEntry struct {
	Entry QueueEntry
}

// UpsertSession writes a full runtime session row.
type UpsertSession struct {
	Session RuntimeSession
}

// UpsertCell writes a full cell row.
type UpsertCell struct {
	Cell Cell
}

func (UpsertEntry) Table() string   { return TableEntries }
func (UpsertSession) Table() string { return TableSessions }
func (UpsertCell) Table() string    { return TableCells }

func (UpsertEntry) mutation()   {}
func (UpsertSession) mutation() {}
func (UpsertCell) mutation()    {}
