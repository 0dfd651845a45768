package store

import (
	"github.com/roach88/huf/internal/audit"
)

// ReplayResult compares a ledgered run with a fresh cycle of the same
// config over the same input.
type ReplayResult struct {
	RunID string `json:"run_id"`

	// ParamHashMatch is false if the fresh config hashes differently.
	ParamHashMatch bool `json:"param_hash_match"`

	// DatasetMatch is false if the input snapshot changed.
	DatasetMatch bool `json:"dataset_match"`

	// ActiveSetMatch requires identical item ids in identical rank order.
	ActiveSetMatch bool `json:"active_set_match"`

	// Added and Dropped list item ids present only in the fresh or only in
	// the stored active set.
	Added   []string `json:"added,omitempty"`
	Dropped []string `json:"dropped,omitempty"`

	DiscardedBudgetStored float64 `json:"discarded_budget_stored"`
	DiscardedBudgetFresh  float64 `json:"discarded_budget_fresh"`
}

// OK reports whether the replay reproduced the stored run.
func (r ReplayResult) OK() bool {
	return r.ParamHashMatch && r.DatasetMatch && r.ActiveSetMatch
}

// CompareRun checks a fresh cycle against a stored run.
func CompareRun(stored *Run, fresh *audit.Artifacts) ReplayResult {
	res := ReplayResult{
		RunID:                 stored.Stamp.RunID,
		ParamHashMatch:        stored.Stamp.ParamHash == fresh.RunStamp.ParamHash,
		DatasetMatch:          stored.Stamp.DatasetID == fresh.RunStamp.DatasetID,
		DiscardedBudgetStored: stored.DiscardedBudgetGlobal,
		DiscardedBudgetFresh:  fresh.Frame.DiscardedBudgetGlobal,
	}

	storedIDs := make([]string, len(stored.ActiveSet))
	inStored := make(map[string]bool, len(stored.ActiveSet))
	for i, rec := range stored.ActiveSet {
		storedIDs[i] = rec.ItemID
		inStored[rec.ItemID] = true
	}
	freshIDs := fresh.ActiveIDs()
	inFresh := make(map[string]bool, len(freshIDs))
	for _, id := range freshIDs {
		inFresh[id] = true
		if !inStored[id] {
			res.Added = append(res.Added, id)
		}
	}
	for _, id := range storedIDs {
		if !inFresh[id] {
			res.Dropped = append(res.Dropped, id)
		}
	}

	res.ActiveSetMatch = len(storedIDs) == len(freshIDs)
	for i := 0; res.ActiveSetMatch && i < len(storedIDs); i++ {
		res.ActiveSetMatch = storedIDs[i] == freshIDs[i]
	}
	return res
}
