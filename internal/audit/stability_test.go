package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huf/internal/engine"
	"github.com/roach88/huf/internal/testutil"
)

var ladderTaus = []float64{0.02, 0.03, 0.05, 0.07, 0.10}

func newLadderAuditor(t *testing.T, opts ...Option) *Auditor {
	t.Helper()
	a, err := New(testutil.LadderTable(t, 20, 10), Meta{DatasetID: "ladder"}, opts...)
	require.NoError(t, err)
	return a
}

func ladderBase() engine.Config {
	return engine.Config{BudgetType: engine.BudgetMass, Exclusion: engine.ExclusionGlobal}
}

func TestStabilityPacket_Shape(t *testing.T) {
	rows, err := newLadderAuditor(t).StabilityPacket(ladderBase(), ladderTaus, 0)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Len(t, StabilityColumns, 7)

	for i, r := range rows {
		assert.Equal(t, ladderTaus[i], r.Tau, "rows follow sweep order")
	}
}

func TestStabilityPacket_Values(t *testing.T) {
	rows, err := newLadderAuditor(t).StabilityPacket(ladderBase(), ladderTaus, 25)
	require.NoError(t, err)

	want := []StabilityRow{
		{Tau: 0.02, ActiveCount: 16, DiscardedBudgetGlobal: 10.0 / 210.0, JaccardVsBaseline: 1.0, SpearmanVsBaseline: 1.0, NearThresholdCount: 1},
		{Tau: 0.03, ActiveCount: 14, DiscardedBudgetGlobal: 0.1, JaccardVsBaseline: 0.875, SpearmanVsBaseline: 1.0, NearThresholdCount: 1},
		{Tau: 0.05, ActiveCount: 10, DiscardedBudgetGlobal: 55.0 / 210.0, JaccardVsBaseline: 0.625, SpearmanVsBaseline: 1.0, NearThresholdCount: 2},
		{Tau: 0.07, ActiveCount: 6, DiscardedBudgetGlobal: 0.5, JaccardVsBaseline: 0.375, SpearmanVsBaseline: 1.0, NearThresholdCount: 3},
		{Tau: 0.10, ActiveCount: 0, DiscardedBudgetGlobal: 1.0, JaccardVsBaseline: 0, SpearmanVsBaseline: 0, NearThresholdCount: 2, Invalid: true},
	}
	require.Len(t, rows, len(want))
	for i := range want {
		assert.Equal(t, want[i].ActiveCount, rows[i].ActiveCount, "tau=%v", want[i].Tau)
		assert.InDelta(t, want[i].DiscardedBudgetGlobal, rows[i].DiscardedBudgetGlobal, 1e-12, "tau=%v", want[i].Tau)
		assert.InDelta(t, want[i].JaccardVsBaseline, rows[i].JaccardVsBaseline, 1e-12, "tau=%v", want[i].Tau)
		assert.InDelta(t, want[i].SpearmanVsBaseline, rows[i].SpearmanVsBaseline, 1e-12, "tau=%v", want[i].Tau)
		assert.Equal(t, want[i].NearThresholdCount, rows[i].NearThresholdCount, "tau=%v", want[i].Tau)
		assert.Equal(t, want[i].Invalid, rows[i].Invalid, "tau=%v", want[i].Tau)
	}
}

func TestStabilityPacket_ParallelMatchesSequential(t *testing.T) {
	seq, err := newLadderAuditor(t).StabilityPacket(ladderBase(), ladderTaus, 25)
	require.NoError(t, err)
	par, err := newLadderAuditor(t, WithParallelism(4)).StabilityPacket(ladderBase(), ladderTaus, 25)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestStabilityPacket_TooFewTaus(t *testing.T) {
	_, err := newLadderAuditor(t).StabilityPacket(ladderBase(), []float64{0.01, 0.02}, 25)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeTooFewTaus, engine.CodeOf(err))
}

func TestStabilityPacket_BaselineFailureIsFatal(t *testing.T) {
	_, err := newLadderAuditor(t).StabilityPacket(ladderBase(), []float64{0.5, 0.02, 0.03}, 25)
	require.Error(t, err)
	assert.True(t, engine.IsRetentionError(err))
}

func TestStabilityPacket_ConfigErrorIsFatal(t *testing.T) {
	base := engine.Config{BudgetType: engine.BudgetMass, Exclusion: "weird"}
	_, err := newLadderAuditor(t).StabilityPacket(base, ladderTaus, 25)
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeUnknownExclusion, engine.CodeOf(err))
}

func TestStabilityPacket_DualHoldsTauLocal(t *testing.T) {
	base := engine.Config{
		BudgetType: engine.BudgetMass,
		Exclusion:  engine.ExclusionDual,
		TauLocal:   engine.Float(0.5),
	}
	// No local share reaches 0.5, so the global tau decides every row.
	rows, err := newLadderAuditor(t).StabilityPacket(base, []float64{0.02, 0.03, 0.05}, 25)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 16, rows[0].ActiveCount)
	assert.Equal(t, 14, rows[1].ActiveCount)
	assert.Equal(t, 10, rows[2].ActiveCount)
}

func TestStabilityPacket_LocalModeNearThreshold(t *testing.T) {
	base := engine.Config{BudgetType: engine.BudgetMass, Exclusion: engine.ExclusionLocal}
	rows, err := newLadderAuditor(t).StabilityPacket(base, []float64{0.05, 0.1, 0.2}, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// R2 local shares are v/55: 0.1 band [0.09, 0.11] holds v=5 and v=6.
	// R1 local shares are v/155: 0.1 band holds v=14, 15, 16, 17.
	assert.Equal(t, 6, rows[1].NearThresholdCount)
}
