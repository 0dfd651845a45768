package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/export"
	"github.com/roach88/huf/internal/plan"
	"github.com/roach88/huf/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	JobOptions
	Sweep bool
}

// RunSummary is the run command's result.
type RunSummary struct {
	RunID                 string   `json:"run_id"`
	DatasetID             string   `json:"dataset_id"`
	ParamHash             string   `json:"param_hash"`
	Config                string   `json:"config"`
	Elements              int      `json:"elements"`
	ActiveCount           int      `json:"active_count"`
	ExcludedCount         int      `json:"excluded_count"`
	DiscardedBudgetGlobal float64  `json:"discarded_budget_global"`
	OutDir                string   `json:"out_dir"`
	Files                 []string `json:"files"`
	StabilityRows         int      `json:"stability_rows,omitempty"`
	InvalidTaus           int      `json:"invalid_taus,omitempty"`
	Ledger                string   `json:"ledger,omitempty"`
	Inserted              bool     `json:"inserted,omitempty"`
	BatchID               string   `json:"batch_id,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one audit cycle and write its artifacts",
		Long: `Run one normalize/exclude/renormalize cycle and write the coherence
map, active set, trace report, error budget and run stamp.

The job comes from a plan file, from flags, or from a plan with flag
overrides. With --sweep (or a sweep section in the plan) the stability
packet is written too. With --db the run is recorded in a SQLite ledger.

Examples:
  huf run --plan audit.cue
  huf run --data elements.csv --tau 0.03 --out ./out
  huf run --plan audit.yaml --tau 0.05 --sweep --db ./huf.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.Sweep, "sweep", false, "also write the stability packet")

	return cmd
}

func runAudit(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	p, err := opts.resolvePlan(cmd, opts.Sweep)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePlanInvalid, "invalid audit job", err)
	}

	j, err := opts.openJob(p, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to load dataset", err)
	}

	metric, err := p.ErrorMetric(j.table)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePlanInvalid, "invalid metric", err)
	}

	art, err := j.auditor.Cycle(j.config, metric)
	if err != nil {
		return formatter.Fail(auditExitCode(err), ErrCodeAudit, "cycle failed", err)
	}

	w := export.NewWriter(p.Resolve(p.Output.Dir), logger)
	files, err := w.WriteArtifacts(art)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write artifacts", err)
	}
	metaFile, err := w.WriteMeta(j.meta)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write meta", err)
	}
	files = append(files, metaFile)

	summary := RunSummary{
		RunID:                 art.RunStamp.RunID,
		DatasetID:             art.RunStamp.DatasetID,
		ParamHash:             art.RunStamp.ParamHash,
		Config:                j.config.String(),
		Elements:              j.table.Len(),
		ActiveCount:           len(art.ActiveSet),
		ExcludedCount:         len(art.Frame.ExcludedIDs()),
		DiscardedBudgetGlobal: art.ErrorBudget.DiscardedBudgetGlobal,
		OutDir:                w.Dir(),
	}

	var rows []audit.StabilityRow
	if p.Sweep != nil {
		rows, err = j.auditor.StabilityPacket(j.config, p.SweepTaus(j.config.Tau), p.SweepTopK())
		if err != nil {
			return formatter.Fail(auditExitCode(err), ErrCodeAudit, "stability sweep failed", err)
		}
		stabFile, err := w.WriteStability(rows)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write stability packet", err)
		}
		files = append(files, stabFile)
		summary.StabilityRows = len(rows)
		summary.InvalidTaus = countInvalid(rows)
	}
	summary.Files = files

	if p.Output.Ledger != "" {
		if err := recordRun(cmd, p, art, rows, &summary); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to record run", err)
		}
	}

	logger.Info("run complete", "run_id", summary.RunID, "active", summary.ActiveCount)
	return formatter.Result(summary, func(w io.Writer) { printRunSummary(w, summary) })
}

func recordRun(cmd *cobra.Command, p *plan.Plan, art *audit.Artifacts, rows []audit.StabilityRow, summary *RunSummary) error {
	ctx := commandContext(cmd)

	source, err := datasetSource(p)
	if err != nil {
		return err
	}

	ledger := p.Resolve(p.Output.Ledger)
	st, err := store.Open(ledger)
	if err != nil {
		return err
	}
	defer st.Close()

	inserted, err := st.WriteRun(ctx, store.NewRun(art, source))
	if err != nil {
		return err
	}
	summary.Ledger = ledger
	summary.Inserted = inserted

	if len(rows) > 0 {
		batchID, err := st.WriteStability(ctx, art.RunStamp.DatasetID, art.Frame.Config, p.SweepTopK(), rows)
		if err != nil {
			return err
		}
		summary.BatchID = batchID
	}
	return nil
}

func countInvalid(rows []audit.StabilityRow) int {
	n := 0
	for _, r := range rows {
		if r.Invalid {
			n++
		}
	}
	return n
}

func printRunSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "✓ Run %s\n", s.RunID)
	fmt.Fprintf(w, "  dataset:    %s\n", s.DatasetID)
	fmt.Fprintf(w, "  config:     %s\n", s.Config)
	fmt.Fprintf(w, "  active:     %d of %d (%d excluded)\n", s.ActiveCount, s.Elements, s.ExcludedCount)
	fmt.Fprintf(w, "  discarded:  %.6f\n", s.DiscardedBudgetGlobal)
	if s.StabilityRows > 0 {
		fmt.Fprintf(w, "  stability:  %d rows, %d invalid\n", s.StabilityRows, s.InvalidTaus)
	}
	if s.Ledger != "" {
		state := "recorded"
		if !s.Inserted {
			state = "already recorded"
		}
		fmt.Fprintf(w, "  ledger:     %s (%s)\n", s.Ledger, state)
	}
	fmt.Fprintf(w, "  artifacts:  %s\n", s.OutDir)
}
