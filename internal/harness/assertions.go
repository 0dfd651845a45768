package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/huf/internal/engine"
)

// defaultTolerance applies to discarded_budget when none is given.
const defaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(result *Result, assertions []Assertion) []error {
	var errs []error
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	if a.Type == AssertErrorCode {
		return assertErrorCode(result, a)
	}
	if result.Artifacts == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "artifacts from a successful cycle",
			Actual:   fmt.Sprintf("cycle failed: %v", result.Err),
		}
	}

	switch a.Type {
	case AssertActiveCount:
		return assertActiveCount(result, a)
	case AssertActiveOrder:
		return assertActiveOrder(result, a)
	case AssertExcluded:
		return assertExcluded(result, a)
	case AssertKept:
		return assertKept(result, a)
	case AssertDiscardedBudget:
		return assertDiscardedBudget(result, a)
	case AssertUnity:
		return assertUnity(result)
	case AssertStabilityRows:
		return assertStabilityRows(result, a)
	case AssertInvalidTaus:
		return assertInvalidTaus(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertErrorCode(result *Result, a Assertion) error {
	got := engine.CodeOf(result.Err)
	if string(got) == a.Code {
		return nil
	}
	actual := "no error"
	if result.Err != nil {
		actual = result.Err.Error()
	}
	return &AssertionError{Type: AssertErrorCode, Expected: a.Code, Actual: actual}
}

func assertActiveCount(result *Result, a Assertion) error {
	got := len(result.Artifacts.ActiveSet)
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertActiveCount,
		Expected: fmt.Sprintf("%d active elements", a.Count),
		Actual:   fmt.Sprintf("%d active elements: %v", got, result.Artifacts.ActiveIDs()),
	}
}

func assertActiveOrder(result *Result, a Assertion) error {
	got := result.Artifacts.ActiveIDs()
	if slices.Equal(got, a.IDs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertActiveOrder,
		Expected: fmt.Sprintf("%v", a.IDs),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func assertExcluded(result *Result, a Assertion) error {
	excluded := result.Artifacts.Frame.ExcludedIDs()
	var missing []string
	for _, id := range a.IDs {
		if !slices.Contains(excluded, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertExcluded,
		Expected: fmt.Sprintf("excluded ids to include %v", missing),
		Actual:   fmt.Sprintf("excluded %v", excluded),
	}
}

func assertKept(result *Result, a Assertion) error {
	active := result.Artifacts.ActiveIDs()
	var missing []string
	for _, id := range a.IDs {
		if !slices.Contains(active, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertKept,
		Expected: fmt.Sprintf("active set to include %v", missing),
		Actual:   fmt.Sprintf("active %v", active),
	}
}

func assertDiscardedBudget(result *Result, a Assertion) error {
	tol := a.Tolerance
	if tol == 0 {
		tol = defaultTolerance
	}
	got := result.Artifacts.ErrorBudget.DiscardedBudgetGlobal
	if math.Abs(got-a.Value) <= tol {
		return nil
	}
	return &AssertionError{
		Type:     AssertDiscardedBudget,
		Expected: fmt.Sprintf("%g (±%g)", a.Value, tol),
		Actual:   fmt.Sprintf("%g", got),
	}
}

func assertUnity(result *Result) error {
	var sum float64
	for _, r := range result.Artifacts.ActiveSet {
		sum += r.RhoGlobalPost
	}
	if math.Abs(sum-1.0) >= engine.UnityTolerance {
		return &AssertionError{
			Type:     AssertUnity,
			Expected: "global post-shares sum to 1",
			Actual:   fmt.Sprintf("sum = %.12f", sum),
		}
	}

	for _, row := range result.Artifacts.CoherenceMap {
		if row.KeptCount > 0 && !row.LocalUnityOK {
			return &AssertionError{
				Type:     AssertUnity,
				Expected: fmt.Sprintf("regime %s local post-shares sum to 1", row.RegimeID),
				Actual:   fmt.Sprintf("sum = %.12f", row.LocalUnityPost),
			}
		}
	}
	return nil
}

func assertStabilityRows(result *Result, a Assertion) error {
	got := len(result.Stability)
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStabilityRows,
		Expected: fmt.Sprintf("%d stability rows", a.Count),
		Actual:   fmt.Sprintf("%d stability rows", got),
	}
}

func assertInvalidTaus(result *Result, a Assertion) error {
	var got []float64
	for _, row := range result.Stability {
		if row.Invalid {
			got = append(got, row.Tau)
		}
	}
	if slices.Equal(got, a.Taus) || (len(got) == 0 && len(a.Taus) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertInvalidTaus,
		Expected: fmt.Sprintf("invalid taus %v", a.Taus),
		Actual:   fmt.Sprintf("invalid taus %v", got),
	}
}
