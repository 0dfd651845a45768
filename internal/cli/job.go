package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/plan"
)

// JobOptions are the plan and override flags shared by run and sweep.
// Flags override the matching plan values; without --plan, --data and
// --tau describe an elements-table job.
type JobOptions struct {
	Plan        string
	Data        string
	Tau         float64
	TauLocal    float64
	Exclusion   string
	BudgetType  string
	Seed        int64
	Metric      string
	OutDir      string
	Ledger      string
	Taus        []float64
	TopK        int
	Parallelism int

	// Clock allows overriding the run-stamp clock (for testing).
	// If nil, defaults to the system clock.
	Clock audit.Clock
}

func (o *JobOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.Plan, "plan", "", "audit plan (.cue, .yaml, .json)")
	f.StringVar(&o.Data, "data", "", "element table (.csv, .tsv, .jsonl); overrides the plan dataset path")
	f.Float64Var(&o.Tau, "tau", 0, "exclusion threshold in share units")
	f.Float64Var(&o.TauLocal, "tau-local", 0, "local threshold for dual exclusion")
	f.StringVar(&o.Exclusion, "exclusion", "", "exclusion mode (global|local|dual)")
	f.StringVar(&o.BudgetType, "budget-type", "", "budget type (mass|energy)")
	f.Int64Var(&o.Seed, "seed", 0, "seed recorded in the parameter identity")
	f.StringVar(&o.Metric, "metric", "", "error metric (none|tv|energy_l2)")
	f.StringVarP(&o.OutDir, "out", "o", "", "output directory for artifacts")
	f.StringVar(&o.Ledger, "db", "", "SQLite run ledger to record into")
	f.Float64SliceVar(&o.Taus, "taus", nil, "explicit sweep taus")
	f.IntVar(&o.TopK, "top-k", 0, "baseline regimes compared in a sweep")
	f.IntVar(&o.Parallelism, "parallelism", 0, "concurrent cycles in a sweep")
}

// resolvePlan loads the plan (or builds one from flags), applies flag
// overrides and checks the result. wantSweep forces a sweep section.
func (o *JobOptions) resolvePlan(cmd *cobra.Command, wantSweep bool) (*plan.Plan, error) {
	flags := cmd.Flags()

	var p *plan.Plan
	if o.Plan != "" {
		loaded, err := plan.Load(o.Plan)
		if err != nil {
			return nil, err
		}
		p = loaded
	} else {
		if o.Data == "" {
			return nil, fmt.Errorf("either --plan or --data is required")
		}
		if !flags.Changed("tau") {
			return nil, fmt.Errorf("--tau is required without --plan")
		}
		p = &plan.Plan{
			Dataset: plan.Dataset{Kind: plan.KindElements},
			Metric:  plan.MetricNone,
			Output:  plan.Output{Dir: "out"},
		}
	}

	var err error
	if flags.Changed("data") {
		if p.Dataset.Path, err = filepath.Abs(o.Data); err != nil {
			return nil, err
		}
	}
	if flags.Changed("tau") {
		p.Config.Tau = o.Tau
	}
	if flags.Changed("tau-local") {
		p.Config.TauLocal = engine.Float(o.TauLocal)
	}
	if flags.Changed("exclusion") {
		p.Config.Exclusion = o.Exclusion
	}
	if flags.Changed("budget-type") {
		p.Config.BudgetType = o.BudgetType
	}
	if flags.Changed("seed") {
		p.Config.Seed = o.Seed
	}
	if flags.Changed("metric") {
		p.Metric = o.Metric
	}
	if flags.Changed("out") {
		if p.Output.Dir, err = filepath.Abs(o.OutDir); err != nil {
			return nil, err
		}
	}
	if flags.Changed("db") {
		if p.Output.Ledger, err = filepath.Abs(o.Ledger); err != nil {
			return nil, err
		}
	}

	sweepFlags := flags.Changed("taus") || flags.Changed("top-k") || flags.Changed("parallelism")
	if (wantSweep || sweepFlags) && p.Sweep == nil {
		p.Sweep = &plan.Sweep{}
	}
	if flags.Changed("taus") {
		p.Sweep.Taus = o.Taus
	}
	if flags.Changed("top-k") {
		p.Sweep.TopK = o.TopK
	}
	if flags.Changed("parallelism") {
		p.Sweep.Parallelism = o.Parallelism
	}

	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// job is a loaded dataset ready to audit.
type job struct {
	plan    *plan.Plan
	config  engine.Config
	table   *engine.Table
	meta    audit.Meta
	auditor *audit.Auditor
}

func (o *JobOptions) openJob(p *plan.Plan, logger *slog.Logger) (*job, error) {
	cfg, err := p.EngineConfig()
	if err != nil {
		return nil, err
	}

	logger.Debug("loading dataset", "kind", p.Dataset.Kind, "path", p.Resolve(p.Dataset.Path))
	table, meta, err := p.LoadDataset()
	if err != nil {
		return nil, err
	}

	auditOpts := []audit.Option{
		audit.WithLogger(logger),
		audit.WithParallelism(p.SweepParallelism()),
	}
	if o.Clock != nil {
		auditOpts = append(auditOpts, audit.WithClock(o.Clock))
	}
	a, err := audit.New(table, meta, auditOpts...)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded", "dataset_id", meta.DatasetID, "elements", table.Len())

	return &job{plan: p, config: cfg, table: table, meta: meta, auditor: a}, nil
}

// datasetSource records the plan's dataset, with an absolute path, as the
// replay source of a ledgered run.
func datasetSource(p *plan.Plan) (string, error) {
	ds := p.Dataset
	abs, err := filepath.Abs(p.Resolve(ds.Path))
	if err != nil {
		return "", err
	}
	ds.Path = abs
	data, err := json.Marshal(ds)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseSource is the inverse of datasetSource.
func parseSource(src string) (*plan.Plan, error) {
	var ds plan.Dataset
	if err := json.Unmarshal([]byte(src), &ds); err != nil {
		return nil, fmt.Errorf("unrecognized run source %q: %w", src, err)
	}
	return &plan.Plan{Dataset: ds}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
