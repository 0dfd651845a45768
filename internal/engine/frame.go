package engine

import "fmt"

// UnityTolerance bounds the deviation from 1 allowed for renormalized
// share sums.
const UnityTolerance = 1e-9

// Row holds one element's shares through a cycle.
type Row struct {
	Element Element

	// RegimeTotalPre is the value sum of the element's regime before exclusion.
	RegimeTotalPre float64

	RhoGlobalPre float64
	RhoLocalPre  float64

	// Excluded is the predicate outcome. Post-shares are zero when true.
	Excluded bool

	// RegimeKeptTotal is the value sum of kept elements in the regime.
	RegimeKeptTotal float64

	RhoGlobalPost float64
	RhoLocalPost  float64
}

// Frame is the engine's output: one Row per element in input order.
type Frame struct {
	Rows []Row

	// TotalValue is the sum of all element values.
	TotalValue float64

	// KeptValue is the sum of retained element values (0 before exclusion).
	KeptValue float64

	// DiscardedBudgetGlobal is the excluded fraction of TotalValue.
	DiscardedBudgetGlobal float64

	// Config is the configuration applied, zero for a Normalize-only frame.
	Config Config
}

// Kept returns the retained rows in input order.
func (f *Frame) Kept() []Row {
	kept := make([]Row, 0, len(f.Rows))
	for _, r := range f.Rows {
		if !r.Excluded {
			kept = append(kept, r)
		}
	}
	return kept
}

// ExcludedIDs returns the ids of excluded elements in input order.
func (f *Frame) ExcludedIDs() []string {
	var ids []string
	for _, r := range f.Rows {
		if r.Excluded {
			ids = append(ids, r.Element.ID)
		}
	}
	return ids
}

// Regimes returns regime ids in order of first appearance.
func (f *Frame) Regimes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range f.Rows {
		if !seen[r.Element.RegimeID] {
			seen[r.Element.RegimeID] = true
			out = append(out, r.Element.RegimeID)
		}
	}
	return out
}

// Share returns the pre-share the predicate consults for an exclusion
// mode: global for global and dual, local for local.
func (r Row) Share(mode Exclusion) float64 {
	if mode == ExclusionLocal {
		return r.RhoLocalPre
	}
	return r.RhoGlobalPre
}

// String renders a row for debugging.
func (r Row) String() string {
	return fmt.Sprintf("%s[%s] v=%g g=%.6g l=%.6g excluded=%t",
		r.Element.ID, r.Element.RegimeID, r.Element.Value, r.RhoGlobalPre, r.RhoLocalPre, r.Excluded)
}
