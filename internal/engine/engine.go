package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/materialize"
	"github.com/quillnb/quill/internal/schema"
	"github.com/quillnb/quill/internal/state"
	"github.com/quillnb/quill/internal/store"
)

// Engine is the single-writer materialization loop for one scope.
//
// External callers submit payloads; the Run loop stamps them, appends
// them to the log, and folds the log suffix into derived state. All
// mutations happen in the Run goroutine.
//
// Thread-safety model:
//   - Submit()/SubmitRaw(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - State(): safe from any goroutine (reads return copies)
type Engine struct {
	scope    string
	writerID string
	log      *store.Store
	derived  *state.Store
	schemas  *schema.Registry
	clock    *Clock
	queue    *envelopeQueue
	idGen    event.IDGenerator
	now      func() int64
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides the event id generator.
// Tests inject a fixed sequential generator for deterministic logs.
func WithIDGenerator(g event.IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithNow overrides the wall clock used for event timestamps.
func WithNow(now func() int64) Option {
	return func(e *Engine) { e.now = now }
}

// WithClock sets a pre-positioned writer-seq clock.
// Used when resuming a writer identity: start from the writer's last
// appended seq so retries dedupe instead of colliding.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine for one scope.
//
// writerID identifies this process in the log; it must be stable for
// the lifetime of the process and unique among concurrent writers.
func New(
	scope string,
	writerID string,
	log *store.Store,
	derived *state.Store,
	schemas *schema.Registry,
	opts ...Option,
) *Engine {
	e := &Engine{
		scope:    scope,
		writerID: writerID,
		log:      log,
		derived:  derived,
		schemas:  schemas,
		clock:    NewClock(),
		queue:    newEnvelopeQueue(),
		idGen:    event.UUIDv7Generator{},
		now:      nowMillis,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Scope returns the notebook scope this engine serves.
func (e *Engine) Scope() string { return e.scope }

// WriterID returns this engine's writer identity.
func (e *Engine) WriterID() string { return e.writerID }

// State returns the derived state store. Reads are safe from any
// goroutine; subscriptions come from here too.
func (e *Engine) State() *state.Store { return e.derived }

// Submit stamps a payload into an envelope and queues it for the Run
// loop. Thread-safe. Returns the stamped envelope (Seq still unset; the
// log assigns it) and false if the engine has been stopped.
func (e *Engine) Submit(p event.Payload) (event.Envelope, bool) {
	env := event.Envelope{
		ID:        e.idGen.Generate(),
		Name:      p.EventName(),
		Scope:     e.scope,
		Timestamp: e.now(),
		WriterID:  e.writerID,
		WriterSeq: e.clock.Next(),
		Payload:   p,
	}
	return env, e.queue.Enqueue(env)
}

// SubmitRaw validates a raw JSON payload against the schema registry,
// decodes it, and submits it. This is the boundary for payloads arriving
// from outside the process (CLI input, external writers).
func (e *Engine) SubmitRaw(name string, raw []byte) (event.Envelope, error) {
	if err := e.schemas.ValidatePayload(name, raw); err != nil {
		if errors.Is(err, event.ErrUnknownName) {
			return event.Envelope{}, &RuntimeError{
				Code:    ErrCodeUnknownEvent,
				Message: err.Error(),
				Scope:   e.scope,
			}
		}
		return event.Envelope{}, &RuntimeError{
			Code:    ErrCodeEventRejected,
			Message: err.Error(),
			Scope:   e.scope,
		}
	}

	payload, err := event.DecodePayload(name, raw)
	if err != nil {
		return event.Envelope{}, &RuntimeError{
			Code:    ErrCodeEventRejected,
			Message: err.Error(),
			Scope:   e.scope,
		}
	}

	env, ok := e.Submit(payload)
	if !ok {
		return event.Envelope{}, fmt.Errorf("engine for scope %q is stopped", e.scope)
	}
	return env, nil
}

// CatchUp folds every log event this engine has not yet observed.
// Called once before Run to bootstrap from an existing log, and by the
// Run loop after each append so interleaved events from other writers
// fold in seq order.
func (e *Engine) CatchUp(ctx context.Context) error {
	records, err := e.log.ReadAfter(ctx, e.scope, e.derived.LastSeq())
	if err != nil {
		return fmt.Errorf("catch up scope %q: %w", e.scope, err)
	}

	for _, rec := range records {
		env, err := store.Decode(rec)
		if err != nil {
			if errors.Is(err, event.ErrUnknownName) {
				// A newer writer's vocabulary. Skip, but advance the
				// observed position so we do not re-read it forever.
				e.logger.Warn("skipping unknown event",
					"scope", e.scope,
					"eventId", rec.ID,
					"name", rec.Name,
					"seq", rec.Seq)
				e.derived.Apply(rec.Seq, nil)
				continue
			}
			return fmt.Errorf("catch up scope %q: %w", e.scope, err)
		}

		materialize.Fold(e.derived, []event.Envelope{env}, e.logger)
	}

	return nil
}

// Run starts the single-writer loop.
// Blocks until the context is cancelled or Stop() is called.
//
// ERROR HANDLING: on event processing failure the error is logged with
// event context and processing continues. Log-and-continue is what
// keeps replay deterministic; retries would not be.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "scope", e.scope, "writerId", e.writerID)

	if err := e.CatchUp(ctx); err != nil {
		return err
	}

	for {
		env, ok := e.queue.TryDequeue()
		if ok {
			if err := e.process(ctx, env); err != nil {
				e.logger.Error("event processing failed",
					"scope", e.scope,
					"eventId", env.ID,
					"name", env.Name,
					"error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "scope", e.scope)
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// Signal received - loop back to TryDequeue. The signal
			// channel closes when the queue closes, so this fires
			// immediately on shutdown.
			if e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed", "scope", e.scope)
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the submission queue, which causes Run() to return once
// drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

// process appends one envelope and folds the log forward past it.
// Called only from the Run goroutine.
func (e *Engine) process(ctx context.Context, env event.Envelope) error {
	seq, inserted, err := e.log.Append(ctx, env)
	if err != nil {
		return &RuntimeError{
			Code:    ErrCodeAppendFailed,
			Message: err.Error(),
			Scope:   e.scope,
			EventID: env.ID,
		}
	}

	if !inserted {
		e.logger.Debug("duplicate append deduplicated",
			"scope", e.scope,
			"eventId", env.ID,
			"seq", seq)
	}

	// Fold everything unobserved, including the event just appended and
	// any interleaved events from other writers. Seq order is preserved
	// because the read is ORDER BY seq.
	return e.CatchUp(ctx)
}
