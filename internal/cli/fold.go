package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/materialize"
	"github.com/quillnb/quill/internal/state"
	"github.com/quillnb/quill/internal/store"
)

// foldedScope is one scope's log folded into derived state.
type foldedScope struct {
	Scope   string
	Events  int // records read from the log
	Skipped int // records with names outside this binary's vocabulary
	Stats   materialize.FoldStats
	State   *state.Store
	Digest  string
}

// foldScope reads a scope's full log and folds it into a fresh store.
// Unknown event names are skipped with their seq still observed, the
// same policy the engine applies during catch-up.
func foldScope(ctx context.Context, log *store.Store, scope string, logger *slog.Logger) (*foldedScope, error) {
	records, err := log.ReadScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("read scope %q: %w", scope, err)
	}

	folded := &foldedScope{
		Scope:  scope,
		Events: len(records),
		State:  state.NewStore(),
	}

	for _, rec := range records {
		env, err := store.Decode(rec)
		if err != nil {
			if errors.Is(err, event.ErrUnknownName) {
				folded.Skipped++
				folded.State.Apply(rec.Seq, nil)
				continue
			}
			return nil, err
		}

		stats := materialize.Fold(folded.State, []event.Envelope{env}, logger)
		folded.Stats.Applied += stats.Applied
		folded.Stats.NoOps += stats.NoOps
		folded.Stats.Rejected += stats.Rejected
	}

	digest, err := folded.State.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest scope %q: %w", scope, err)
	}
	folded.Digest = digest

	return folded, nil
}

// resolveScopes returns the scopes to operate on: the flag value when
// set (verified to exist), otherwise every scope in the log.
func resolveScopes(ctx context.Context, log *store.Store, flag string) ([]string, error) {
	scopes, err := log.Scopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}

	if flag == "" {
		return scopes, nil
	}
	for _, s := range scopes {
		if s == flag {
			return []string{flag}, nil
		}
	}
	return nil, fmt.Errorf("scope %q not found in log", flag)
}

// foldLogger returns a logger for fold diagnostics: stderr when verbose,
// discarded otherwise so malformed-event warnings do not pollute output.
func foldLogger(verbose bool, errWriter io.Writer) *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(errWriter, nil))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
