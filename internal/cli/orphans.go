package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillnb/quill/internal/session"
	"github.com/quillnb/quill/internal/store"
)

// OrphansOptions holds flags for the orphans command.
type OrphansOptions struct {
	*RootOptions
	Database      string
	Scope         string // optional - specific scope only
	ConfigPath    string
	HealthyWithin time.Duration
	StaleAfter    time.Duration
}

// OrphanReport describes one orphaned queue entry.
type OrphanReport struct {
	Scope          string `json:"scope"`
	QueueID        string `json:"queue_id"`
	CellID         string `json:"cell_id"`
	Status         string `json:"status"`
	Session        string `json:"session"`
	SessionMissing bool   `json:"session_missing"`
	Health         string `json:"health"`
}

// OrphansResult holds the overall sweep result.
type OrphansResult struct {
	Orphans []OrphanReport `json:"orphans"`
	Total   int            `json:"total"`
}

// NewOrphansCommand creates the orphans command.
func NewOrphansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrphansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Report queue entries whose assignee looks dead",
		Long: `Fold the log and report non-terminal queue entries assigned to a
session that is terminated, heartbeat-stale, or missing entirely.

The sweep only observes. Cancelling or re-queueing an orphan is an
operator decision; this command never writes to the log.

Examples:
  quill orphans --db ./quill.db
  quill orphans --db ./quill.db --scope nb-1 --stale-after 5m
  quill orphans --db ./quill.db --config ./quill.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrphans(opts, cmd)
		},
	}

	defaults := session.DefaultThresholds()
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "sweep a specific scope only")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "YAML config file with threshold overrides")
	cmd.Flags().DurationVar(&opts.HealthyWithin, "healthy-within", defaults.HealthyWithin, "heartbeat age considered healthy")
	cmd.Flags().DurationVar(&opts.StaleAfter, "stale-after", defaults.StaleAfter, "heartbeat age considered stale")

	return cmd
}

func runOrphans(opts *OrphansOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	log, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer log.Close()

	scopes, err := resolveScopes(ctx, log, opts.Scope)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve scopes", err)
	}

	logger := foldLogger(opts.Verbose, cmd.ErrOrStderr())
	thresholds := session.Thresholds{
		HealthyWithin: opts.HealthyWithin,
		StaleAfter:    opts.StaleAfter,
	}

	// Config file values apply only where the flag was not given
	// explicitly, so flags always win.
	if opts.ConfigPath != "" {
		cfg, err := LoadConfig(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		if cfg.HealthyWithin > 0 && !cmd.Flags().Changed("healthy-within") {
			thresholds.HealthyWithin = cfg.HealthyWithin
		}
		if cfg.StaleAfter > 0 && !cmd.Flags().Changed("stale-after") {
			thresholds.StaleAfter = cfg.StaleAfter
		}
	}

	result := OrphansResult{Orphans: []OrphanReport{}}

	for _, scope := range scopes {
		folded, err := foldScope(ctx, log, scope, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to fold scope %s", scope), err)
		}

		sweeper := session.NewSweeper(folded.State, session.WithThresholds(thresholds))
		for _, orphan := range sweeper.Sweep() {
			result.Orphans = append(result.Orphans, OrphanReport{
				Scope:          scope,
				QueueID:        orphan.Entry.ID,
				CellID:         orphan.Entry.CellID,
				Status:         string(orphan.Entry.Status),
				Session:        orphan.Entry.AssignedSession,
				SessionMissing: orphan.SessionMissing,
				Health:         string(orphan.Health),
			})
		}
	}
	result.Total = len(result.Orphans)

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No orphaned entries.")
		return nil
	}

	fmt.Fprintf(w, "%d orphaned entr%s:\n", result.Total, pluralY(result.Total))
	for _, o := range result.Orphans {
		detail := fmt.Sprintf("session %s %s", o.Session, o.Health)
		if o.SessionMissing {
			detail = fmt.Sprintf("session %s missing from log", o.Session)
		}
		fmt.Fprintf(w, "  %s/%s (cell %s, %s): %s\n", o.Scope, o.QueueID, o.CellID, o.Status, detail)
	}
	return nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
