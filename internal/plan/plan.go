package plan

import (
	"fmt"
	"path/filepath"

	"github.com/roach88/huf/internal/adapter"
	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
)

// Dataset kinds select the adapter.
const (
	KindElements         = "elements"
	KindVectorDB         = "vectordb"
	KindTrafficPhaseBand = "traffic_phase_band"
	KindTrafficAnomaly   = "traffic_anomaly"
)

// Metric names.
const (
	MetricNone     = "none"
	MetricTV       = "tv"
	MetricEnergyL2 = "energy_l2"
)

// DefaultScale multiplies the plan tau when a sweep lists no explicit taus.
var DefaultScale = []float64{0.8, 0.9, 1.0, 1.1, 1.2}

// Plan is one audit job.
type Plan struct {
	Dataset    Dataset `json:"dataset"`
	Config     Config  `json:"config"`
	Metric     string  `json:"metric"`
	FinePixels int     `json:"fine_pixels,omitempty"`
	Sweep      *Sweep  `json:"sweep,omitempty"`
	Output     Output  `json:"output"`

	// baseDir anchors relative paths; empty for plans built in code.
	baseDir string
}

// Dataset selects the input file and adapter.
type Dataset struct {
	Kind            string                  `json:"kind"`
	Path            string                  `json:"path"`
	QueryLabel      string                  `json:"query_label,omitempty"`
	VectorDB        *adapter.VectorDBConfig `json:"vectordb,omitempty"`
	Statuses        []string                `json:"statuses,omitempty"`
	IncludeCallText bool                    `json:"include_call_text,omitempty"`
}

// Config mirrors engine.Config with plan-file field names.
type Config struct {
	BudgetType string   `json:"budget_type"`
	Exclusion  string   `json:"exclusion"`
	Tau        float64  `json:"tau"`
	TauLocal   *float64 `json:"tau_local,omitempty"`
	Seed       int64    `json:"seed"`
}

// Sweep configures the stability packet.
type Sweep struct {
	Taus        []float64 `json:"taus,omitempty"`
	Scale       []float64 `json:"scale,omitempty"`
	TopK        int       `json:"top_k"`
	Parallelism int       `json:"parallelism"`
}

// Output says where artifacts and the run ledger go.
type Output struct {
	Dir    string `json:"dir"`
	Ledger string `json:"ledger,omitempty"`
}

// EngineConfig converts and validates the threshold configuration.
func (p *Plan) EngineConfig() (engine.Config, error) {
	cfg := engine.Config{
		BudgetType: engine.BudgetType(p.Config.BudgetType),
		Exclusion:  engine.Exclusion(p.Config.Exclusion),
		Tau:        p.Config.Tau,
		Seed:       p.Config.Seed,
	}
	if cfg.BudgetType == "" {
		cfg.BudgetType = engine.BudgetMass
	}
	if cfg.Exclusion == "" {
		cfg.Exclusion = engine.ExclusionGlobal
	}
	if p.Config.TauLocal != nil {
		cfg.TauLocal = engine.Float(*p.Config.TauLocal)
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// SweepTaus returns the sweep's tau values for a base tau: the explicit
// taus if any, otherwise each scale factor (DefaultScale when unset)
// times tau.
func (p *Plan) SweepTaus(tau float64) []float64 {
	if p.Sweep != nil && len(p.Sweep.Taus) > 0 {
		return append([]float64(nil), p.Sweep.Taus...)
	}
	scale := DefaultScale
	if p.Sweep != nil && len(p.Sweep.Scale) > 0 {
		scale = p.Sweep.Scale
	}
	out := make([]float64, len(scale))
	for i, s := range scale {
		out[i] = s * tau
	}
	return out
}

// SweepTopK returns the number of baseline regimes compared in a sweep.
func (p *Plan) SweepTopK() int {
	if p.Sweep == nil || p.Sweep.TopK <= 0 {
		return audit.DefaultTopK
	}
	return p.Sweep.TopK
}

// SweepParallelism returns the concurrent cycle limit for a sweep.
func (p *Plan) SweepParallelism() int {
	if p.Sweep == nil || p.Sweep.Parallelism < 1 {
		return 1
	}
	return p.Sweep.Parallelism
}

// Resolve anchors a plan-relative path.
func (p *Plan) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.baseDir == "" {
		return path
	}
	return filepath.Join(p.baseDir, path)
}

// LoadDataset runs the plan's adapter.
func (p *Plan) LoadDataset() (*engine.Table, audit.Meta, error) {
	path := p.Resolve(p.Dataset.Path)
	switch p.Dataset.Kind {
	case KindElements, "":
		return adapter.LoadElements(path)
	case KindVectorDB:
		cfg := adapter.DefaultVectorDBConfig()
		if p.Dataset.VectorDB != nil {
			cfg = *p.Dataset.VectorDB
		}
		return adapter.VectorDB(path, cfg, p.Dataset.QueryLabel)
	case KindTrafficPhaseBand:
		return adapter.TrafficPhaseBand(path)
	case KindTrafficAnomaly:
		return adapter.TrafficAnomaly(path, p.Dataset.Statuses, p.Dataset.IncludeCallText)
	default:
		return nil, audit.Meta{}, &Error{Field: "dataset.kind", Message: fmt.Sprintf("unknown dataset kind %q", p.Dataset.Kind)}
	}
}

// ErrorMetric returns the metric callback for table, nil for none.
func (p *Plan) ErrorMetric(table *engine.Table) (audit.ErrorMetric, error) {
	switch p.Metric {
	case MetricNone, "":
		return nil, nil
	case MetricTV:
		return audit.TotalVariation(table), nil
	case MetricEnergyL2:
		if p.FinePixels <= 0 {
			return nil, &Error{Field: "fine_pixels", Message: "energy_l2 requires fine_pixels > 0"}
		}
		return audit.EnergyL2(table, p.FinePixels), nil
	default:
		return nil, &Error{Field: "metric", Message: fmt.Sprintf("unknown metric %q", p.Metric)}
	}
}

// Check validates the parts of a plan the schema cannot: the engine
// config, the metric and the sweep length. Plans built in code should be
// checked before use; Load checks for you.
func (p *Plan) Check() error {
	if p.Dataset.Path == "" {
		return &Error{Field: "dataset.path", Message: "dataset path is required"}
	}
	if _, err := p.EngineConfig(); err != nil {
		return err
	}
	if p.Metric == MetricEnergyL2 && p.FinePixels <= 0 {
		return &Error{Field: "fine_pixels", Message: "energy_l2 requires fine_pixels > 0"}
	}
	if p.Sweep != nil {
		if n := len(p.SweepTaus(p.Config.Tau)); n < audit.MinSweepTaus {
			return &Error{Field: "sweep", Message: fmt.Sprintf("sweep needs at least %d taus (got %d)", audit.MinSweepTaus, n)}
		}
	}
	return nil
}
