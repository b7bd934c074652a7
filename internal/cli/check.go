package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillnb/quill/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database string
	Scope    string // optional - specific scope only
}

// CheckScopeResult holds the determinism check for a single scope.
type CheckScopeResult struct {
	Scope         string `json:"scope"`
	Events        int    `json:"events"`
	Digest        string `json:"digest"`
	ReplayDigest  string `json:"replay_digest"`
	Deterministic bool   `json:"deterministic"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scopes           []CheckScopeResult `json:"scopes"`
	TotalScopes      int                `json:"total_scopes"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify fold determinism against the event log",
		Long: `Fold each scope's log twice into independent state stores and compare
the canonical state digests. Identical logs must derive byte-identical
state; a mismatch means the materializer read something outside the
event order.

Exit codes:
  0 - All scopes deterministic
  1 - Digest mismatch detected
  2 - Command error (database not found, unknown scope, etc.)

Examples:
  quill check --db ./quill.db
  quill check --db ./quill.db --scope nb-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "check a specific scope only")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
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

	result := CheckResult{
		Scopes:           make([]CheckScopeResult, 0, len(scopes)),
		TotalScopes:      len(scopes),
		AllDeterministic: true,
	}

	for _, scope := range scopes {
		first, err := foldScope(ctx, log, scope, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to fold scope %s", scope), err)
		}
		second, err := foldScope(ctx, log, scope, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to re-fold scope %s", scope), err)
		}

		deterministic := first.Digest == second.Digest
		if !deterministic {
			result.AllDeterministic = false
		}
		result.Scopes = append(result.Scopes, CheckScopeResult{
			Scope:         scope,
			Events:        first.Events,
			Digest:        first.Digest,
			ReplayDigest:  second.Digest,
			Deterministic: deterministic,
		})
	}

	if opts.Format == "json" {
		return outputCheckJSON(cmd, result)
	}
	return outputCheckText(cmd, result)
}

func outputCheckJSON(cmd *cobra.Command, result CheckResult) error {
	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}

	if !result.AllDeterministic {
		if err := formatter.Error(ErrCodeDeterminism, "determinism verification failed", result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return formatter.Success(result)
}

func outputCheckText(cmd *cobra.Command, result CheckResult) error {
	w := cmd.OutOrStdout()

	for _, scope := range result.Scopes {
		status := "✓"
		if !scope.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Scope %s: %d event(s), digest %s\n", status, scope.Scope, scope.Events, scope.Digest)
		if !scope.Deterministic {
			fmt.Fprintf(w, "  Replay digest: %s\n", scope.ReplayDigest)
		}
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All scopes verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
