package audit

import (
	"math"
	"sort"

	"github.com/roach88/huf/internal/engine"
)

// RegimeRow is one coherence map row.
type RegimeRow struct {
	RegimeID string `json:"regime_id"`

	// RhoGlobalPre is the regime's share of the full table.
	RhoGlobalPre float64 `json:"rho_global_pre"`

	// RhoGlobalPost is the regime's share of the kept subset (0 if fully excluded).
	RhoGlobalPost float64 `json:"rho_global_post"`

	// RhoDiscardedPre is the pre-share mass the regime lost to exclusion.
	RhoDiscardedPre float64 `json:"rho_discarded_pre"`

	// LocalUnityPost is the sum of the regime's local post-shares.
	LocalUnityPost float64 `json:"local_unity_post"`

	// LocalUnityOK is true iff LocalUnityPost is 1 within tolerance.
	// Always false for a regime with no kept elements.
	LocalUnityOK bool `json:"local_unity_ok_post"`

	GlobalDiscardedBudget float64 `json:"global_discarded_budget"`

	ElementCount int `json:"element_count"`
	KeptCount    int `json:"kept_count"`
}

// ActiveRecord is one ranked active-set entry.
type ActiveRecord struct {
	Rank          int      `json:"rank"`
	ItemID        string   `json:"item_id"`
	RegimeID      string   `json:"regime_id"`
	RhoGlobalPost float64  `json:"rho_global_post"`
	RhoGlobalPre  float64  `json:"rho_global_pre"`
	RhoLocalPre   float64  `json:"rho_local_pre"`
	RhoLocalPost  float64  `json:"rho_local_post"`
	Value         float64  `json:"value"`
	Tau           float64  `json:"tau"`
	TauLocal      *float64 `json:"tau_local,omitempty"`
	Exclusion     string   `json:"exclusion"`
}

// TraceRecord links a kept element back to its provenance.
// All six fields are mandatory.
type TraceRecord struct {
	ItemID                string   `json:"item_id"`
	RegimePath            []string `json:"regime_path"`
	RhoGlobalPost         float64  `json:"rho_global_post"`
	InputsRef             string   `json:"inputs_ref"`
	MethodRef             string   `json:"method_ref"`
	DiscardedBudgetGlobal float64  `json:"discarded_budget_global"`
}

// Artifacts is the output of one cycle.
type Artifacts struct {
	CoherenceMap []RegimeRow    `json:"coherence_map"`
	ActiveSet    []ActiveRecord `json:"active_set"`
	TraceReport  []TraceRecord  `json:"trace_report"`
	ErrorBudget  *ErrorBudget   `json:"error_budget"`
	RunStamp     *RunStamp      `json:"run_stamp"`

	// Frame is the engine frame the artifacts were built from. Not part of
	// the output contract.
	Frame *engine.Frame `json:"-"`
}

// ActiveIDs returns active-set item ids in rank order.
func (a *Artifacts) ActiveIDs() []string {
	ids := make([]string, len(a.ActiveSet))
	for i, r := range a.ActiveSet {
		ids[i] = r.ItemID
	}
	return ids
}

type regimeAcc struct {
	row      RegimeRow
	firstIdx int
}

func buildCoherenceMap(f *engine.Frame) []RegimeRow {
	accs := make(map[string]*regimeAcc)
	order := f.Regimes()
	for i, id := range order {
		accs[id] = &regimeAcc{row: RegimeRow{RegimeID: id}, firstIdx: i}
	}

	for _, r := range f.Rows {
		acc := accs[r.Element.RegimeID]
		acc.row.ElementCount++
		acc.row.RhoGlobalPre += r.RhoGlobalPre
		if r.Excluded {
			acc.row.RhoDiscardedPre += r.RhoGlobalPre
			continue
		}
		acc.row.KeptCount++
		acc.row.RhoGlobalPost += r.RhoGlobalPost
		acc.row.LocalUnityPost += r.RhoLocalPost
	}

	rows := make([]RegimeRow, 0, len(order))
	for _, id := range order {
		row := accs[id].row
		row.LocalUnityOK = row.KeptCount > 0 &&
			math.Abs(row.LocalUnityPost-1.0) < engine.UnityTolerance
		row.GlobalDiscardedBudget = f.DiscardedBudgetGlobal
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RhoGlobalPre != rows[j].RhoGlobalPre {
			return rows[i].RhoGlobalPre > rows[j].RhoGlobalPre
		}
		return rows[i].RegimeID < rows[j].RegimeID
	})
	return rows
}

// rankedKept returns kept rows ordered by global post-share descending,
// ties in input order.
func rankedKept(f *engine.Frame) []engine.Row {
	kept := f.Kept()
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].RhoGlobalPost > kept[j].RhoGlobalPost
	})
	return kept
}

func buildActiveSet(ranked []engine.Row, cfg engine.Config) []ActiveRecord {
	out := make([]ActiveRecord, len(ranked))
	for i, r := range ranked {
		out[i] = ActiveRecord{
			Rank:          i + 1,
			ItemID:        r.Element.ID,
			RegimeID:      r.Element.RegimeID,
			RhoGlobalPost: r.RhoGlobalPost,
			RhoGlobalPre:  r.RhoGlobalPre,
			RhoLocalPre:   r.RhoLocalPre,
			RhoLocalPost:  r.RhoLocalPost,
			Value:         r.Element.Value,
			Tau:           cfg.Tau,
			TauLocal:      cfg.TauLocal,
			Exclusion:     string(cfg.Exclusion),
		}
	}
	return out
}

func buildTraceReport(ranked []engine.Row, discarded float64) []TraceRecord {
	out := make([]TraceRecord, len(ranked))
	for i, r := range ranked {
		out[i] = TraceRecord{
			ItemID:                r.Element.ID,
			RegimePath:            r.Element.Path(),
			RhoGlobalPost:         r.RhoGlobalPost,
			InputsRef:             r.Element.InputsRef,
			MethodRef:             r.Element.MethodRef,
			DiscardedBudgetGlobal: discarded,
		}
	}
	return out
}
