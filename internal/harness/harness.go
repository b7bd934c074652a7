package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/materialize"
	"github.com/quillnb/quill/internal/schema"
	"github.com/quillnb/quill/internal/state"
	"github.com/quillnb/quill/internal/store"
	"github.com/quillnb/quill/internal/testutil"
)

// defaultWriter is used by event steps that do not name a writer.
const defaultWriter = "writer-harness"

// Result holds the outcome of one scenario run.
type Result struct {
	// Scenario is the scenario that produced this result.
	Scenario *Scenario

	// Stats summarizes the fold: applied mutations, guarded no-ops and
	// rejected events.
	Stats materialize.FoldStats

	// State is the derived state after folding every appended event.
	State *state.Store

	// Digest is the canonical state digest. Run already verified it
	// against an independent replay of the same log.
	Digest string

	// Refused lists the names of steps the schema boundary turned away,
	// in step order. Refused steps never reach the log.
	Refused []string
}

// Run executes a scenario against a fresh in-memory log.
//
// Each event step is validated at the schema boundary, appended with a
// deterministic id and per-writer sequence, and the whole log is then
// folded into derived state. The fold runs twice into independent
// stores; a digest mismatch fails the run, since identical logs must
// derive identical state.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	log, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer log.Close()

	schemas, err := schema.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	ids := testutil.NewSequentialIDGenerator("evt")
	writerSeqs := make(map[string]int64)

	result := &Result{Scenario: scenario}

	for i, step := range scenario.Events {
		raw, err := json.Marshal(step.Payload)
		if err != nil {
			return nil, fmt.Errorf("events[%d] %s: encode payload: %w", i, step.Name, err)
		}

		if err := schemas.ValidatePayload(step.Name, raw); err != nil {
			if step.Reject {
				result.Refused = append(result.Refused, step.Name)
				continue
			}
			return nil, fmt.Errorf("events[%d] %s: %w", i, step.Name, err)
		}
		if step.Reject {
			return nil, fmt.Errorf("events[%d] %s: marked reject but payload validated", i, step.Name)
		}

		payload, err := event.DecodePayload(step.Name, raw)
		if err != nil {
			return nil, fmt.Errorf("events[%d] %s: %w", i, step.Name, err)
		}

		writer := step.Writer
		if writer == "" {
			writer = defaultWriter
		}
		writerSeqs[writer]++

		env := event.Envelope{
			ID:        ids.Generate(),
			Name:      step.Name,
			Scope:     scenario.Scope,
			Timestamp: step.At,
			WriterID:  writer,
			WriterSeq: writerSeqs[writer],
			Payload:   payload,
		}
		if _, _, err := log.Append(ctx, env); err != nil {
			return nil, fmt.Errorf("events[%d] %s: append: %w", i, step.Name, err)
		}
	}

	records, err := log.ReadScope(ctx, scenario.Scope)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	envs := make([]event.Envelope, len(records))
	for i, rec := range records {
		env, err := store.Decode(rec)
		if err != nil {
			return nil, err
		}
		envs[i] = env
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	result.State = state.NewStore()
	result.Stats = materialize.Fold(result.State, envs, logger)

	digest, err := result.State.Digest()
	if err != nil {
		return nil, fmt.Errorf("state digest: %w", err)
	}
	result.Digest = digest

	// Independent replay of the same log must land on the same digest.
	replica := state.NewStore()
	materialize.Fold(replica, envs, logger)
	replicaDigest, err := replica.Digest()
	if err != nil {
		return nil, fmt.Errorf("replica digest: %w", err)
	}
	if replicaDigest != digest {
		return nil, fmt.Errorf("fold is not deterministic: digest %s, replay digest %s", digest, replicaDigest)
	}

	return result, nil
}
