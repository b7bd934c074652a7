package store

import (
	"context"
	"fmt"

	"github.com/quillnb/quill/internal/event"
)

// Append inserts an envelope into the log and returns its seq.
//
// Idempotent: if the event id or the (scope, writerId, writerSeq) triple
// already exists, nothing is inserted and the existing event's seq is
// returned with inserted=false. A retried append therefore always learns
// the position its first attempt received.
//
// The envelope's Seq field is ignored on input; the log owns seq
// assignment.
func (s *Store) Append(ctx context.Context, env event.Envelope) (seq int64, inserted bool, err error) {
	payloadJSON, err := event.EncodePayload(env.Payload)
	if err != nil {
		return 0, false, fmt.Errorf("append event: %w", err)
	}

	// Transaction makes insert-or-select atomic under retry races.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("append event: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO events
		(id, name, scope, timestamp, writer_id, writer_seq, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		env.ID,
		env.Name,
		env.Scope,
		env.Timestamp,
		env.WriterID,
		env.WriterSeq,
		string(payloadJSON),
	)
	if err != nil {
		return 0, false, fmt.Errorf("append event: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("append event: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		seq, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("append event: last insert id: %w", err)
		}
		inserted = true
	} else {
		// Conflict - the event landed on an earlier attempt. Look it up
		// by id first, then by the writer triple (covers a retry that
		// regenerated the event id).
		err = tx.QueryRowContext(ctx, `
			SELECT seq FROM events WHERE id = ?
		`, env.ID).Scan(&seq)
		if err != nil {
			err = tx.QueryRowContext(ctx, `
				SELECT seq FROM events
				WHERE scope = ? AND writer_id = ? AND writer_seq = ?
			`, env.Scope, env.WriterID, env.WriterSeq).Scan(&seq)
		}
		if err != nil {
			return 0, false, fmt.Errorf("append event: select existing: %w", err)
		}
		inserted = false
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("append event: commit: %w", err)
	}

	return seq, inserted, nil
}
