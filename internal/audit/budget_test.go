package audit

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/testutil"
)

func TestErrorBudget_NoMetricPlaceholder(t *testing.T) {
	art, err := newSampleAuditor(t).Cycle(sampleConfig, nil)
	require.NoError(t, err)

	m := art.ErrorBudget.Map()
	assert.Contains(t, m, "measured_error")
	assert.Nil(t, m["measured_error"])
	assert.Equal(t, NoMetricNote, m["measured_error_note"])
	assert.Equal(t, "mass", m["budget_type"])
	assert.Equal(t, "mass", m["frame"])
}

func TestErrorBudget_EnergyFrame(t *testing.T) {
	cfg := sampleConfig
	cfg.BudgetType = engine.BudgetEnergy
	art, err := newSampleAuditor(t).Cycle(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "energy", art.ErrorBudget.Frame)
	assert.Equal(t, "energy", art.ErrorBudget.BudgetType)
}

func TestErrorBudget_MetricCannotOverrideCoreKeys(t *testing.T) {
	metric := func([]engine.Row) (map[string]any, error) {
		return map[string]any{"frame": "bogus", "custom": 7}, nil
	}
	art, err := newSampleAuditor(t).Cycle(sampleConfig, metric)
	require.NoError(t, err)

	m := art.ErrorBudget.Map()
	assert.Equal(t, "mass", m["frame"])
	assert.Equal(t, 7, m["custom"])
	assert.NotContains(t, m, "measured_error")
}

func TestErrorBudget_MarshalsFlat(t *testing.T) {
	art, err := newSampleAuditor(t).Cycle(sampleConfig, nil)
	require.NoError(t, err)

	data, err := json.Marshal(art.ErrorBudget)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Contains(t, got, "discarded_budget_global")
	assert.Contains(t, got, "measured_error_note")
}

func TestTotalVariation_EqualsDiscardedBudget(t *testing.T) {
	tbl := testutil.SampleTable(t)
	a, err := New(tbl, Meta{DatasetID: "sample"})
	require.NoError(t, err)

	art, err := a.Cycle(sampleConfig, TotalVariation(tbl))
	require.NoError(t, err)

	m := art.ErrorBudget.Map()
	assert.Equal(t, "total_variation_over_elements", m["metric"])
	assert.InDelta(t, art.ErrorBudget.DiscardedBudgetGlobal, m["tv"].(float64), 1e-12)
}

func TestEnergyL2_RMSE(t *testing.T) {
	tbl := testutil.SampleTable(t)
	a, err := New(tbl, Meta{DatasetID: "sample"})
	require.NoError(t, err)

	cfg := sampleConfig
	cfg.BudgetType = engine.BudgetEnergy
	art, err := a.Cycle(cfg, EnergyL2(tbl, 12))
	require.NoError(t, err)

	m := art.ErrorBudget.Map()
	assert.InDelta(t, 3.0, m["excluded_energy"].(float64), 1e-12)
	assert.InDelta(t, 34.0, m["total_energy"].(float64), 1e-12)
	assert.InDelta(t, math.Sqrt(3.0/12.0), m["rmse"].(float64), 1e-12)
	assert.InDelta(t, art.ErrorBudget.DiscardedBudgetGlobal,
		m["excluded_energy"].(float64)/m["total_energy"].(float64), 1e-12)
}

func TestEnergyL2_RejectsZeroPixels(t *testing.T) {
	tbl := testutil.SampleTable(t)
	a, err := New(tbl, Meta{DatasetID: "sample"})
	require.NoError(t, err)

	_, err = a.Cycle(sampleConfig, EnergyL2(tbl, 0))
	assert.Error(t, err)
}
