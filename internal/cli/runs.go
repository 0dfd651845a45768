package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Dataset  string
}

// RunView is the JSON shape of a ledgered run.
type RunView struct {
	Seq                   int64                `json:"seq"`
	RunStamp              audit.RunStamp       `json:"run_stamp"`
	Config                string               `json:"config"`
	Source                string               `json:"source"`
	EngineVersion         string               `json:"engine_version"`
	DiscardedBudgetGlobal float64              `json:"discarded_budget_global"`
	ErrorBudget           map[string]any       `json:"error_budget"`
	CoherenceMap          []audit.RegimeRow    `json:"coherence_map"`
	ActiveSet             []audit.ActiveRecord `json:"active_set"`
	TraceReport           []audit.TraceRecord  `json:"trace_report"`
}

// NewRunsCommand creates the runs command with its list and show
// subcommands.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
		Long: `List or show runs recorded with "huf run --db".

Examples:
  huf runs list --db ./huf.db
  huf runs list --db ./huf.db --dataset 3f2a9c0d1e4b5a6c
  huf runs show --db ./huf.db <run-id> --format json`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite run ledger (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List ledgered runs in insertion order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Dataset, "dataset", "", "only runs of this dataset id")

	show := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one ledgered run with its artifacts",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

// openLedger opens an existing ledger. A missing file is a command error
// rather than a fresh empty database.
func openLedger(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("ledger not found: %s", path)
	}
	return store.Open(path)
}

func runList(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openLedger(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to open ledger", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(commandContext(cmd), opts.Dataset)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to list runs", err)
	}

	return formatter.Result(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tRUN_ID\tDATASET\tCREATED\tACTIVE\tDISCARDED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.6f\n",
				r.Seq, r.RunID, r.DatasetID, r.CreatedUTC, r.ActiveCount, r.DiscardedBudgetGlobal)
		}
		tw.Flush()
	})
}

func runShow(opts *RunsOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openLedger(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to open ledger", err)
	}
	defer st.Close()

	run, err := st.ReadRun(commandContext(cmd), runID)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to read run", err)
	}

	view := RunView{
		Seq:                   run.Seq,
		RunStamp:              run.Stamp,
		Config:                run.Config.String(),
		Source:                run.Source,
		EngineVersion:         run.EngineVersion,
		DiscardedBudgetGlobal: run.DiscardedBudgetGlobal,
		ErrorBudget:           run.ErrorBudget,
		CoherenceMap:          run.CoherenceMap,
		ActiveSet:             run.ActiveSet,
		TraceReport:           run.TraceReport,
	}

	return formatter.Result(view, func(w io.Writer) { printRun(w, view) })
}

func printRun(w io.Writer, v RunView) {
	fmt.Fprintf(w, "Run %s (seq %d)\n", v.RunStamp.RunID, v.Seq)
	fmt.Fprintf(w, "  dataset:    %s\n", v.RunStamp.DatasetID)
	fmt.Fprintf(w, "  created:    %s\n", v.RunStamp.CreatedUTC)
	fmt.Fprintf(w, "  config:     %s\n", v.Config)
	fmt.Fprintf(w, "  param_hash: %s\n", v.RunStamp.ParamHash)
	fmt.Fprintf(w, "  code_hash:  %s\n", v.RunStamp.CodeHash)
	fmt.Fprintf(w, "  discarded:  %.6f\n", v.DiscardedBudgetGlobal)

	fmt.Fprintln(w, "\nCoherence map:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  REGIME\tPRE\tPOST\tDISCARDED\tKEPT\tUNITY")
	for _, r := range v.CoherenceMap {
		fmt.Fprintf(tw, "  %s\t%.6f\t%.6f\t%.6f\t%d/%d\t%t\n",
			r.RegimeID, r.RhoGlobalPre, r.RhoGlobalPost, r.RhoDiscardedPre,
			r.KeptCount, r.ElementCount, r.LocalUnityOK)
	}
	tw.Flush()

	fmt.Fprintln(w, "\nActive set:")
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  RANK\tITEM\tREGIME\tRHO_POST")
	for _, r := range v.ActiveSet {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%.6f\n", r.Rank, r.ItemID, r.RegimeID, r.RhoGlobalPost)
	}
	tw.Flush()
}
