package materialize

import (
	"errors"
	"log/slog"

	"github.com/quillnb/quill/internal/event"
	"github.com/quillnb/quill/internal/state"
)

// FoldStats summarizes one fold pass.
type FoldStats struct {
	Applied  int // events that produced mutations
	NoOps    int // guarded no-ops (stale claims, duplicates, stragglers)
	Rejected int // malformed events, logged and skipped
}

// Fold replays envelopes in order into the store.
//
// Per-event error policy is log-and-continue: a malformed event is
// skipped without halting the fold, and its seq still advances the
// store's observed position. Envelopes must already be in seq order;
// the caller owns that (the log read is ORDER BY seq).
func Fold(s *state.Store, envs []event.Envelope, logger *slog.Logger) FoldStats {
	if logger == nil {
		logger = slog.Default()
	}

	var stats FoldStats
	for _, env := range envs {
		muts, err := Step(env, Load(s, env))
		if err != nil {
			var reject *RejectError
			if errors.As(err, &reject) {
				logger.Warn("skipping malformed event",
					"eventId", env.ID,
					"name", env.Name,
					"seq", env.Seq,
					"error", err)
				stats.Rejected++
				s.Apply(env.Seq, nil)
				continue
			}
			logger.Warn("skipping unprocessable event",
				"eventId", env.ID,
				"name", env.Name,
				"seq", env.Seq,
				"error", err)
			stats.Rejected++
			s.Apply(env.Seq, nil)
			continue
		}

		s.Apply(env.Seq, muts)
		if len(muts) == 0 {
			stats.NoOps++
		} else {
			stats.Applied++
		}
	}
	return stats
}
