package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTable is R1/e0..e4 = [10,5,2,1,0.5] and R2/e0..e4 = [8,4,2,1,0.5].
func sampleTable(t *testing.T) *Table {
	t.Helper()
	values := map[string][]float64{
		"R1": {10, 5, 2, 1, 0.5},
		"R2": {8, 4, 2, 1, 0.5},
	}
	var elems []Element
	for _, regime := range []string{"R1", "R2"} {
		for i, v := range values[regime] {
			elems = append(elems, Element{
				ID:       regime + "/e" + string(rune('0'+i)),
				RegimeID: regime,
				Value:    v,
			})
		}
	}
	tbl, err := NewTable(elems)
	require.NoError(t, err)
	return tbl
}

func keptIDs(f *Frame) []string {
	var ids []string
	for _, r := range f.Kept() {
		ids = append(ids, r.Element.ID)
	}
	return ids
}

func sumPost(f *Frame) float64 {
	var s float64
	for _, r := range f.Kept() {
		s += r.RhoGlobalPost
	}
	return s
}

// =============================================================================
// Global exclusion
// =============================================================================

func TestExclude_SampleScenarioGlobal(t *testing.T) {
	f, err := Exclude(sampleTable(t), Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0.03})
	require.NoError(t, err)

	assert.Equal(t, []string{"R1/e0", "R1/e1", "R1/e2", "R2/e0", "R2/e1", "R2/e2"}, keptIDs(f))
	assert.Equal(t, []string{"R1/e3", "R1/e4", "R2/e3", "R2/e4"}, f.ExcludedIDs())
	assert.InDelta(t, 1.0, sumPost(f), UnityTolerance)
	assert.InDelta(t, 3.0/34.0, f.DiscardedBudgetGlobal, 1e-12)
	assert.InDelta(t, 34.0, f.TotalValue, 1e-12)
	assert.InDelta(t, 31.0, f.KeptValue, 1e-12)
}

func TestExclude_PreSharesUseAllElements(t *testing.T) {
	f, err := Exclude(sampleTable(t), Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0.03})
	require.NoError(t, err)

	first := f.Rows[0]
	assert.InDelta(t, 10.0/34.0, first.RhoGlobalPre, 1e-12)
	assert.InDelta(t, 10.0/18.5, first.RhoLocalPre, 1e-12)
	assert.InDelta(t, 10.0/31.0, first.RhoGlobalPost, 1e-12)
	assert.InDelta(t, 10.0/17.0, first.RhoLocalPost, 1e-12)

	last := f.Rows[len(f.Rows)-1]
	assert.True(t, last.Excluded)
	assert.Zero(t, last.RhoGlobalPost)
	assert.Zero(t, last.RhoLocalPost)
}

func TestExclude_LocalPostSumsToOnePerRegime(t *testing.T) {
	f, err := Exclude(sampleTable(t), Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0.03})
	require.NoError(t, err)

	sums := map[string]float64{}
	for _, r := range f.Kept() {
		sums[r.Element.RegimeID] += r.RhoLocalPost
	}
	for regime, s := range sums {
		assert.InDelta(t, 1.0, s, UnityTolerance, "regime %s", regime)
	}
}

func TestExclude_ZeroTauKeepsEverything(t *testing.T) {
	f, err := Exclude(sampleTable(t), Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0})
	require.NoError(t, err)
	assert.Len(t, f.Kept(), 10)
	assert.Zero(t, f.DiscardedBudgetGlobal)
}

// =============================================================================
// Local and dual exclusion
// =============================================================================

func TestExclude_Local(t *testing.T) {
	// R1 local shares: 10/18.5=.54, 5/18.5=.27, 2/18.5=.108, 1/18.5=.054, .5/18.5=.027
	f, err := Exclude(sampleTable(t), Config{BudgetType: BudgetMass, Exclusion: ExclusionLocal, Tau: 0.1})
	require.NoError(t, err)

	assert.Equal(t, []string{"R1/e0", "R1/e1", "R1/e2", "R2/e0", "R2/e1", "R2/e2"}, keptIDs(f))
	assert.InDelta(t, 1.0, sumPost(f), UnityTolerance)
}

func TestExclude_DualIsOrToKeep(t *testing.T) {
	// One big regime and one tiny regime with a single element. The tiny
	// element fails the global bar but owns 100% of its regime.
	tbl := MustTable([]Element{
		{ID: "big/a", RegimeID: "big", Value: 90},
		{ID: "big/b", RegimeID: "big", Value: 9},
		{ID: "small/a", RegimeID: "small", Value: 1},
	})

	f, err := Exclude(tbl, Config{BudgetType: BudgetMass, Exclusion: ExclusionDual, Tau: 0.05, TauLocal: Float(0.5)})
	require.NoError(t, err)

	// big/b: global .09 >= .05 keeps it despite local .0909 < .5
	// small/a: global .01 < .05 but local 1.0 >= .5 keeps it
	assert.Equal(t, []string{"big/a", "big/b", "small/a"}, keptIDs(f))

	f, err = Exclude(tbl, Config{BudgetType: BudgetMass, Exclusion: ExclusionDual, Tau: 0.5, TauLocal: Float(0.95)})
	require.NoError(t, err)
	// big/b fails both; small/a clears local; big/a clears global.
	assert.Equal(t, []string{"big/a", "small/a"}, keptIDs(f))
}

func TestExclude_DualKeepsAnyElementClearingGlobal(t *testing.T) {
	tbl := sampleTable(t)
	cfg := Config{BudgetType: BudgetMass, Exclusion: ExclusionDual, Tau: 0.1, TauLocal: Float(2.0)}
	f, err := Exclude(tbl, cfg)
	require.NoError(t, err)
	for _, r := range f.Rows {
		if r.RhoGlobalPre >= cfg.Tau {
			assert.False(t, r.Excluded, "%s clears tau and must be kept", r.Element.ID)
		}
	}
}

// =============================================================================
// Fatal errors
// =============================================================================

func TestExclude_RetentionGuard(t *testing.T) {
	_, err := Exclude(sampleTable(t), Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0.5})
	require.Error(t, err)
	assert.True(t, IsRetentionError(err))
	assert.Equal(t, ErrCodeAllExcluded, CodeOf(err))
}

func TestExclude_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		code ErrorCode
	}{
		{"unknown exclusion", Config{BudgetType: BudgetMass, Exclusion: "median", Tau: 0.1}, ErrCodeUnknownExclusion},
		{"dual without tau_local", Config{BudgetType: BudgetMass, Exclusion: ExclusionDual, Tau: 0.1}, ErrCodeMissingTauLocal},
		{"unknown budget", Config{BudgetType: "volume", Exclusion: ExclusionGlobal, Tau: 0.1}, ErrCodeUnknownBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Exclude(sampleTable(t), tt.cfg)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestExclude_ZeroTotal(t *testing.T) {
	tbl := MustTable([]Element{
		{ID: "a", RegimeID: "R", Value: 0},
		{ID: "b", RegimeID: "R", Value: 0},
	})
	_, err := Exclude(tbl, Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNonPositiveTotal, CodeOf(err))
}

func TestExclude_OverflowingTotal(t *testing.T) {
	tbl := MustTable([]Element{
		{ID: "a", RegimeID: "R", Value: 1e308},
		{ID: "b", RegimeID: "R", Value: 1e308},
	})

	_, err := Normalize(tbl)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidValue, CodeOf(err))

	_, err = Exclude(tbl, Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidValue, CodeOf(err))
	assert.False(t, IsRetentionError(err))
}

func TestExclude_DoesNotMutateTable(t *testing.T) {
	tbl := sampleTable(t)
	before := tbl.Elements()
	_, err := Exclude(tbl, Config{BudgetType: BudgetMass, Exclusion: ExclusionGlobal, Tau: 0.03})
	require.NoError(t, err)
	assert.Equal(t, before, tbl.Elements())
}

func TestNormalize_ZeroRegimeTotal(t *testing.T) {
	tbl := MustTable([]Element{
		{ID: "a", RegimeID: "R1", Value: 5},
		{ID: "b", RegimeID: "R2", Value: 0},
	})
	f, err := Normalize(tbl)
	require.NoError(t, err)
	assert.Zero(t, f.Rows[1].RhoLocalPre, "zero regime total yields zero local share")
	assert.InDelta(t, 1.0, f.Rows[0].RhoLocalPre, 1e-12)
	assert.Equal(t, []string{"R1", "R2"}, f.Regimes())
}
