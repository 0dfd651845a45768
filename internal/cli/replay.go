package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string

	// Clock allows overriding the fresh cycle's clock (for testing).
	Clock audit.Clock
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return newReplayCommand(&ReplayOptions{RootOptions: rootOpts})
}

func newReplayCommand(opts *ReplayOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Re-run a ledgered run and compare",
		Long: `Reload a ledgered run's dataset, re-run its stored configuration and
compare the fresh cycle with the stored one.

A replay reproduces the run when the parameter hash, the dataset id and
the ranked active set all match. The run id itself is expected to differ
because it includes the creation time.

Exit codes:
  0 - Replay reproduced the run
  1 - Replay diverged (changed input or changed code)
  2 - Command error (ledger or run not found, dataset missing)

Examples:
  huf replay --db ./huf.db <run-id>
  huf replay --db ./huf.db <run-id> --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run ledger (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	st, err := openLedger(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to open ledger", err)
	}
	defer st.Close()

	stored, err := st.ReadRun(commandContext(cmd), runID)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to read run", err)
	}

	p, err := parseSource(stored.Source)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "cannot replay run", err)
	}
	table, meta, err := p.LoadDataset()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to load dataset", err)
	}

	auditOpts := []audit.Option{audit.WithLogger(logger)}
	if opts.Clock != nil {
		auditOpts = append(auditOpts, audit.WithClock(opts.Clock))
	}
	a, err := audit.New(table, meta, auditOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to load dataset", err)
	}

	logger.Debug("replaying run", "run_id", runID, "config", stored.Config.String())
	fresh, err := a.Cycle(stored.Config, nil)
	if err != nil {
		return formatter.Fail(auditExitCode(err), ErrCodeAudit, "replay cycle failed", err)
	}

	result := store.CompareRun(stored, fresh)
	if result.OK() {
		return formatter.Result(result, func(w io.Writer) { printReplay(w, result) })
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeReplay,
				Message: fmt.Sprintf("replay of %s diverged", runID),
			},
		}
		if err := jsonEncode(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		printReplay(formatter.Writer, result)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("replay of %s diverged", runID))
}

func printReplay(w io.Writer, r store.ReplayResult) {
	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	if r.OK() {
		fmt.Fprintf(w, "✓ Replay of %s reproduced the run\n", r.RunID)
	} else {
		fmt.Fprintf(w, "✗ Replay of %s diverged\n", r.RunID)
	}
	fmt.Fprintf(w, "  %s param hash\n", mark(r.ParamHashMatch))
	fmt.Fprintf(w, "  %s dataset\n", mark(r.DatasetMatch))
	fmt.Fprintf(w, "  %s active set\n", mark(r.ActiveSetMatch))
	if len(r.Added) > 0 {
		fmt.Fprintf(w, "    added:   %v\n", r.Added)
	}
	if len(r.Dropped) > 0 {
		fmt.Fprintf(w, "    dropped: %v\n", r.Dropped)
	}
	fmt.Fprintf(w, "  discarded budget: stored %.6f, fresh %.6f\n", r.DiscardedBudgetStored, r.DiscardedBudgetFresh)
}
