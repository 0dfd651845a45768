package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/export"
	"github.com/roach88/huf/internal/store"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	JobOptions
}

// SweepResult is the sweep command's result.
type SweepResult struct {
	DatasetID string               `json:"dataset_id"`
	Config    string               `json:"config"`
	TopK      int                  `json:"top_k"`
	File      string               `json:"file"`
	BatchID   string               `json:"batch_id,omitempty"`
	Rows      []audit.StabilityRow `json:"rows"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return newSweepCommand(&SweepOptions{RootOptions: rootOpts})
}

func newSweepCommand(opts *SweepOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Write the stability packet for a tau sweep",
		Long: `Run one cycle per swept tau and compare each against the first
(baseline) tau. Taus come from --taus, the plan's sweep section, or the
default scale factors 0.8, 0.9, 1.0, 1.1, 1.2 times the plan tau.

A tau that excludes every element yields an invalid row, not an error.

Examples:
  huf sweep --plan audit.cue
  huf sweep --data elements.csv --tau 0.03 --taus 0.02,0.03,0.05,0.07
  huf sweep --plan audit.cue --parallelism 4 --db ./huf.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	p, err := opts.resolvePlan(cmd, true)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePlanInvalid, "invalid audit job", err)
	}

	j, err := opts.openJob(p, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDataset, "failed to load dataset", err)
	}

	taus := p.SweepTaus(j.config.Tau)
	formatter.VerboseLog("Sweeping %d taus with parallelism %d", len(taus), p.SweepParallelism())

	rows, err := j.auditor.StabilityPacket(j.config, taus, p.SweepTopK())
	if err != nil {
		return formatter.Fail(auditExitCode(err), ErrCodeAudit, "stability sweep failed", err)
	}

	w := export.NewWriter(p.Resolve(p.Output.Dir), logger)
	file, err := w.WriteStability(rows)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write stability packet", err)
	}

	result := SweepResult{
		DatasetID: j.meta.DatasetID,
		Config:    j.config.String(),
		TopK:      p.SweepTopK(),
		File:      file,
		Rows:      rows,
	}

	if p.Output.Ledger != "" {
		st, err := store.Open(p.Resolve(p.Output.Ledger))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to open ledger", err)
		}
		defer st.Close()

		result.BatchID, err = st.WriteStability(commandContext(cmd), j.meta.DatasetID, j.config, result.TopK, rows)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeLedger, "failed to record stability packet", err)
		}
	}

	return formatter.Result(result, func(w io.Writer) { printStability(w, result) })
}

func printStability(w io.Writer, r SweepResult) {
	fmt.Fprintf(w, "Stability packet for %s (%s, top_k=%d)\n\n", r.DatasetID, r.Config, r.TopK)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAU\tACTIVE\tDISCARDED\tJACCARD\tSPEARMAN\tNEAR\tINVALID")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%g\t%d\t%.6f\t%.4f\t%.4f\t%d\t%t\n",
			row.Tau, row.ActiveCount, row.DiscardedBudgetGlobal,
			row.JaccardVsBaseline, row.SpearmanVsBaseline,
			row.NearThresholdCount, row.Invalid)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nwrote %s\n", r.File)
	if r.BatchID != "" {
		fmt.Fprintf(w, "batch %s\n", r.BatchID)
	}
}
