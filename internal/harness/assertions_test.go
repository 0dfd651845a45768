package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/engine"
)

func sampleResult(t *testing.T) *Result {
	t.Helper()
	result, err := Run(twoRegimeScenario(0.2, Assertion{Type: AssertUnity}))
	require.NoError(t, err)
	require.True(t, result.Pass)
	return result
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	result := sampleResult(t)
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertActiveCount, Count: 2},
		{Type: AssertKept, IDs: []string{"c"}},
		{Type: AssertExcluded, IDs: []string{"b"}},
		{Type: AssertInvalidTaus},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	result := sampleResult(t)
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertActiveCount, Count: 2},
		{Type: AssertKept, IDs: []string{"b"}},
		{Type: AssertExcluded, IDs: []string{"a"}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "assertions[1]")
	assert.Contains(t, errs[1].Error(), "assertions[2]")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(t), []Assertion{{Type: "final_state"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), `unknown assertion type "final_state"`)
}

func TestAssertActiveOrder_Mismatch(t *testing.T) {
	err := assertActiveOrder(sampleResult(t), Assertion{IDs: []string{"c", "a"}})
	require.Error(t, err)

	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertActiveOrder, ae.Type)
	assert.Equal(t, "[c a]", ae.Expected)
	assert.Equal(t, "[a c]", ae.Actual)
}

func TestAssertDiscardedBudget_Tolerance(t *testing.T) {
	result := sampleResult(t)

	assert.NoError(t, assertDiscardedBudget(result, Assertion{Value: 0.1}))
	assert.Error(t, assertDiscardedBudget(result, Assertion{Value: 0.11}))
	assert.NoError(t, assertDiscardedBudget(result, Assertion{Value: 0.11, Tolerance: 0.02}))
}

func TestAssertUnity_DetectsBrokenRegime(t *testing.T) {
	result := sampleResult(t)
	result.Artifacts.CoherenceMap[0].LocalUnityOK = false
	result.Artifacts.CoherenceMap[0].LocalUnityPost = 0.5

	err := assertUnity(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local post-shares sum to 1")
}

func TestAssertUnity_DetectsBrokenGlobalSum(t *testing.T) {
	result := sampleResult(t)
	result.Artifacts.ActiveSet[0].RhoGlobalPost += 0.1

	err := assertUnity(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global post-shares sum to 1")
}

func TestAssertErrorCode(t *testing.T) {
	result := &Result{Err: engine.NewError(engine.ErrCodeAllExcluded, "gone", nil)}
	assert.NoError(t, assertErrorCode(result, Assertion{Code: "ALL_EXCLUDED"}))

	err := assertErrorCode(result, Assertion{Code: "EMPTY_TABLE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALL_EXCLUDED: gone")

	err = assertErrorCode(&Result{}, Assertion{Code: "EMPTY_TABLE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no error")
}

func TestAssertInvalidTaus(t *testing.T) {
	result := &Result{Stability: []audit.StabilityRow{
		{Tau: 0.1},
		{Tau: 0.5, Invalid: true},
		{Tau: 0.9, Invalid: true},
	}}
	assert.NoError(t, assertInvalidTaus(result, Assertion{Taus: []float64{0.5, 0.9}}))
	assert.Error(t, assertInvalidTaus(result, Assertion{Taus: []float64{0.9}}))
	assert.Error(t, assertInvalidTaus(result, Assertion{}))
}

func TestEvaluate_NoArtifacts(t *testing.T) {
	result := &Result{Err: engine.NewError(engine.ErrCodeEmptyTable, "empty", nil)}
	err := evaluate(result, Assertion{Type: AssertActiveCount})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle failed: EMPTY_TABLE: empty")
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{Type: "kept", Expected: "x", Actual: "y"}
	assert.Equal(t, "Assertion failed: kept\n  Expected: x\n  Actual: y", err.Error())
}
