package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillnb/quill/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Scope    string // optional - specific scope only
}

// ReplayScopeResult holds the replay result for a single scope.
type ReplayScopeResult struct {
	Scope    string          `json:"scope"`
	Events   int             `json:"events"`
	Applied  int             `json:"applied"`
	NoOps    int             `json:"no_ops"`
	Rejected int             `json:"rejected"`
	Skipped  int             `json:"skipped"`
	LastSeq  int64           `json:"last_seq"`
	Digest   string          `json:"digest"`
	State    json.RawMessage `json:"state"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scopes      []ReplayScopeResult `json:"scopes"`
	TotalScopes int                 `json:"total_scopes"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Fold the event log and print derived state",
		Long: `Fold the event log into derived state and print it.

Events are replayed in global seq order per scope. Malformed events are
counted and skipped, the same policy the engine applies live, so the
printed state is exactly what a running engine would serve.

Exit codes:
  0 - Replay succeeded
  2 - Command error (database not found, unknown scope, etc.)

Examples:
  quill replay --db ./quill.db
  quill replay --db ./quill.db --scope nb-1
  quill replay --db ./quill.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "replay a specific scope only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	if len(scopes) == 0 {
		if opts.Format == "json" {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return formatter.Success(ReplayResult{Scopes: []ReplayScopeResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scopes found in log.")
		return nil
	}

	logger := foldLogger(opts.Verbose, cmd.ErrOrStderr())

	result := ReplayResult{
		Scopes:      make([]ReplayScopeResult, 0, len(scopes)),
		TotalScopes: len(scopes),
	}

	for _, scope := range scopes {
		folded, err := foldScope(ctx, log, scope, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay scope %s", scope), err)
		}

		canonical, err := folded.State.CanonicalState()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to encode scope %s", scope), err)
		}

		result.Scopes = append(result.Scopes, ReplayScopeResult{
			Scope:    scope,
			Events:   folded.Events,
			Applied:  folded.Stats.Applied,
			NoOps:    folded.Stats.NoOps,
			Rejected: folded.Stats.Rejected,
			Skipped:  folded.Skipped,
			LastSeq:  folded.State.LastSeq(),
			Digest:   folded.Digest,
			State:    canonical,
		})
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d scope(s)\n\n", result.TotalScopes)

	for _, scope := range result.Scopes {
		fmt.Fprintf(w, "Scope: %s\n", scope.Scope)
		fmt.Fprintf(w, "  Events: %d (applied %d, no-ops %d, rejected %d, skipped %d)\n",
			scope.Events, scope.Applied, scope.NoOps, scope.Rejected, scope.Skipped)
		fmt.Fprintf(w, "  Last seq: %d\n", scope.LastSeq)
		fmt.Fprintf(w, "  Digest: %s\n", scope.Digest)
		if verbose {
			fmt.Fprintf(w, "  State: %s\n", scope.State)
		}
		fmt.Fprintln(w)
	}

	return nil
}
