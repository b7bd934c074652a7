package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quillnb/quill/internal/event"
)

// Record is one raw log row. Payload stays undecoded so readers can
// skip events from a newer vocabulary instead of failing the whole read.
type Record struct {
	Seq       int64
	ID        string
	Name      string
	Scope     string
	Timestamp int64
	WriterID  string
	WriterSeq int64
	Payload   []byte
}

// Decode parses a record into a typed envelope.
// Propagates event.ErrUnknownName (wrapped) for vocabulary the reader
// does not know; callers decide whether that is skip-with-warning or
// a hard error.
func Decode(rec Record) (event.Envelope, error) {
	payload, err := event.DecodePayload(rec.Name, rec.Payload)
	if err != nil {
		return event.Envelope{}, fmt.Errorf("decode event %s (seq %d): %w", rec.ID, rec.Seq, err)
	}
	return event.Envelope{
		ID:        rec.ID,
		Name:      rec.Name,
		Scope:     rec.Scope,
		Timestamp: rec.Timestamp,
		WriterID:  rec.WriterID,
		WriterSeq: rec.WriterSeq,
		Seq:       rec.Seq,
		Payload:   payload,
	}, nil
}

const recordColumns = "seq, id, name, scope, timestamp, writer_id, writer_seq, payload"

// ReadScope returns all events for one scope in seq order.
func (s *Store) ReadScope(ctx context.Context, scope string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		WHERE scope = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("read scope %q: %w", scope, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ReadAfter returns events for one scope with seq greater than after,
// in seq order. The engine's incremental fold uses this to pick up
// exactly the suffix it has not observed.
func (s *Store) ReadAfter(ctx context.Context, scope string, after int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		WHERE scope = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, scope, after)
	if err != nil {
		return nil, fmt.Errorf("read scope %q after %d: %w", scope, after, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ReadAll returns every event in the log in seq order.
func (s *Store) ReadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM events
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read all events: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Scopes returns the distinct scopes present in the log, sorted.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT scope FROM events ORDER BY scope ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("read scopes: scan: %w", err)
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

// LastSeq returns the highest seq in scope, or 0 for an empty scope.
func (s *Store) LastSeq(ctx context.Context, scope string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE scope = ?
	`, scope).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq for scope %q: %w", scope, err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var payload string
		if err := rows.Scan(
			&rec.Seq, &rec.ID, &rec.Name, &rec.Scope,
			&rec.Timestamp, &rec.WriterID, &rec.WriterSeq, &payload,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	return records, rows.Err()
}
