package audit

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/huf/internal/engine"
)

// NoMetricNote explains the null measured_error placeholder.
const NoMetricNote = "No error metric callback provided (empirical error is domain-specific)."

// ErrorMetric attaches a domain interpretation to a cycle. It receives the
// kept rows (input order) and returns metric fields merged into the error
// budget. An error aborts the cycle.
type ErrorMetric func(kept []engine.Row) (map[string]any, error)

// ErrorBudget reports how much mass the exclusion discarded.
type ErrorBudget struct {
	BudgetType            string  `json:"budget_type"`
	DiscardedBudgetGlobal float64 `json:"discarded_budget_global"`
	Frame                 string  `json:"frame"`

	// Measured holds the metric callback output, nil when none was given.
	Measured map[string]any `json:"-"`
}

// Map flattens the budget into the output mapping. Metric fields never
// override budget_type, discarded_budget_global or frame.
func (b ErrorBudget) Map() map[string]any {
	out := make(map[string]any, len(b.Measured)+3)
	if b.Measured == nil {
		out["measured_error"] = nil
		out["measured_error_note"] = NoMetricNote
	}
	for k, v := range b.Measured {
		out[k] = v
	}
	out["budget_type"] = b.BudgetType
	out["discarded_budget_global"] = b.DiscardedBudgetGlobal
	out["frame"] = b.Frame
	return out
}

// MarshalJSON emits the flattened mapping.
func (b ErrorBudget) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Map())
}

func buildErrorBudget(f *engine.Frame, metric ErrorMetric) (*ErrorBudget, error) {
	b := &ErrorBudget{
		BudgetType:            string(f.Config.BudgetType),
		DiscardedBudgetGlobal: f.DiscardedBudgetGlobal,
		Frame:                 f.Config.Frame(),
	}
	if metric == nil {
		return b, nil
	}
	measured, err := metric(f.Kept())
	if err != nil {
		return nil, fmt.Errorf("error metric: %w", err)
	}
	if measured == nil {
		measured = map[string]any{}
	}
	b.Measured = measured
	return b, nil
}

// TotalVariation measures the total-variation distance between the full
// pre-exclusion distribution and the renormalized kept distribution:
// ½ Σ |rho_pre − rho_post| over every element of table, with post = 0 for
// excluded elements. For nonnegative budgets it equals the discarded budget.
func TotalVariation(table *engine.Table) ErrorMetric {
	return func(kept []engine.Row) (map[string]any, error) {
		total := table.TotalValue()
		if total <= 0 {
			return nil, fmt.Errorf("total variation: total value %v <= 0", total)
		}
		post := make(map[string]float64, len(kept))
		for _, r := range kept {
			post[r.Element.ID] = r.RhoGlobalPost
		}

		var tv float64
		for _, e := range table.Elements() {
			tv += math.Abs(e.Value/total - post[e.ID])
		}
		return map[string]any{
			"metric": "total_variation_over_elements",
			"tv":     0.5 * tv,
		}, nil
	}
}

// EnergyL2 reports the pixel-basis RMSE implied by zeroing excluded
// energy blocks, for tables whose values are sums of squared samples over
// fineCount fine pixels. The squared L2 error fraction equals the
// discarded budget exactly.
func EnergyL2(table *engine.Table, fineCount int) ErrorMetric {
	return func(kept []engine.Row) (map[string]any, error) {
		if fineCount <= 0 {
			return nil, fmt.Errorf("energy l2: fine pixel count must be positive (got %d)", fineCount)
		}
		total := table.TotalValue()
		var keptEnergy float64
		for _, r := range kept {
			keptEnergy += r.Element.Value
		}
		excluded := math.Max(total-keptEnergy, 0)
		return map[string]any{
			"metric":          "L2_RMSE_pixel_basis",
			"rmse":            math.Sqrt(excluded / float64(fineCount)),
			"excluded_energy": excluded,
			"total_energy":    total,
			"note":            "Exact equality: discarded_budget_global == ||Δf||_2^2 / ||f||_2^2 (pixel basis, energy budget).",
		}, nil
	}
}
