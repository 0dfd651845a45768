package audit

import (
	"io"
	"log/slog"

	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/ir"
)

// Meta is the adapter-to-core handoff record. Only DatasetID is
// interpreted by the core; Extra is carried for the caller's meta.json.
type Meta struct {
	DatasetID string         `json:"dataset_id"`
	Extra     map[string]any `json:"-"`
}

// Map flattens the meta into a single mapping for serialization.
func (m Meta) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+1)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["dataset_id"] = m.DatasetID
	return out
}

// Auditor runs cycles over one element table.
type Auditor struct {
	table       *engine.Table
	datasetID   string
	fingerprint string
	clock       Clock
	logger      *slog.Logger
	parallelism int
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithClock sets the clock used for run stamps.
func WithClock(c Clock) Option {
	return func(a *Auditor) { a.clock = c }
}

// WithCodeFingerprint overrides the code-version fingerprint that feeds
// the code hash.
func WithCodeFingerprint(fp string) Option {
	return func(a *Auditor) { a.fingerprint = fp }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

// WithParallelism bounds the number of concurrent cycles in a stability
// sweep. Values below 2 run the sweep sequentially.
func WithParallelism(n int) Option {
	return func(a *Auditor) { a.parallelism = n }
}

// New creates an Auditor. meta.DatasetID is required.
func New(table *engine.Table, meta Meta, opts ...Option) (*Auditor, error) {
	if table == nil || table.Len() == 0 {
		return nil, engine.NewError(engine.ErrCodeEmptyTable, "element table is empty", nil)
	}
	if meta.DatasetID == "" {
		return nil, engine.NewError(engine.ErrCodeMissingDatasetID, "meta must include a dataset_id", nil)
	}
	a := &Auditor{
		table:       table,
		datasetID:   meta.DatasetID,
		fingerprint: ir.CodeFingerprint,
		clock:       SystemClock{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Table returns the audited table.
func (a *Auditor) Table() *engine.Table {
	return a.table
}

// DatasetID returns the dataset identifier stamped on every run.
func (a *Auditor) DatasetID() string {
	return a.datasetID
}

// Cycle runs normalize, exclude and renormalize under cfg and builds the
// artifacts. metric may be nil. Any error is fatal: no artifacts are
// returned alongside it.
func (a *Auditor) Cycle(cfg engine.Config, metric ErrorMetric) (*Artifacts, error) {
	f, err := engine.Exclude(a.table, cfg)
	if err != nil {
		return nil, err
	}

	budget, err := buildErrorBudget(f, metric)
	if err != nil {
		return nil, err
	}

	stamp, err := makeRunStamp(a.datasetID, cfg, a.fingerprint, a.clock.Now())
	if err != nil {
		return nil, err
	}

	ranked := rankedKept(f)
	art := &Artifacts{
		CoherenceMap: buildCoherenceMap(f),
		ActiveSet:    buildActiveSet(ranked, cfg),
		TraceReport:  buildTraceReport(ranked, f.DiscardedBudgetGlobal),
		ErrorBudget:  budget,
		RunStamp:     &stamp,
		Frame:        f,
	}

	if err := validateArtifacts(art); err != nil {
		return nil, err
	}

	a.logger.Debug("cycle complete",
		"run_id", stamp.RunID,
		"config", cfg.String(),
		"active", len(art.ActiveSet),
		"regimes", len(art.CoherenceMap),
		"discarded_budget_global", f.DiscardedBudgetGlobal,
	)
	return art, nil
}
