package audit

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/huf/internal/engine"
)

// DefaultTopK is the number of baseline regimes compared by rank
// correlation when the caller passes topK <= 0.
const DefaultTopK = 25

// MinSweepTaus is the smallest accepted sweep.
const MinSweepTaus = 3

// StabilityColumns lists the stability row fields in output order.
var StabilityColumns = []string{
	"tau",
	"active_count",
	"discarded_budget_global",
	"jaccard_vs_baseline",
	"spearman_regime_rho_vs_baseline",
	"near_threshold_count",
	"invalid",
}

// StabilityRow holds the diagnostics for one swept tau.
type StabilityRow struct {
	Tau                   float64 `json:"tau"`
	ActiveCount           int     `json:"active_count"`
	DiscardedBudgetGlobal float64 `json:"discarded_budget_global"`
	JaccardVsBaseline     float64 `json:"jaccard_vs_baseline"`
	SpearmanVsBaseline    float64 `json:"spearman_regime_rho_vs_baseline"`
	NearThresholdCount    int     `json:"near_threshold_count"`
	Invalid               bool    `json:"invalid"`
}

// baseline is what every swept cycle is compared against.
type baseline struct {
	activeIDs []string
	regimes   []string
	rhos      []float64
}

// StabilityPacket reruns the cycle once per tau with every other config
// field held fixed, and compares each run to the cycle at taus[0].
//
// A tau at which every element is excluded yields an invalid row instead
// of an error. Any other failure, and any failure of the baseline cycle,
// aborts the sweep.
func (a *Auditor) StabilityPacket(base engine.Config, taus []float64, topK int) ([]StabilityRow, error) {
	if len(taus) < MinSweepTaus {
		return nil, engine.NewError(engine.ErrCodeTooFewTaus,
			fmt.Sprintf("stability packet needs at least %d tau values (got %d)", MinSweepTaus, len(taus)),
			map[string]string{"count": fmt.Sprint(len(taus))})
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	baseArt, err := a.Cycle(base.WithTau(taus[0]), nil)
	if err != nil {
		return nil, fmt.Errorf("baseline cycle at tau=%g: %w", taus[0], err)
	}
	bl := newBaseline(baseArt, topK)

	// Pre-shares depend only on the table, so one pass serves every tau.
	pre, err := engine.Normalize(a.table)
	if err != nil {
		return nil, err
	}

	rows := make([]StabilityRow, len(taus))
	sweepOne := func(i int) error {
		row, err := a.sweepRow(base, taus[i], bl, pre)
		if err != nil {
			return err
		}
		rows[i] = row
		return nil
	}

	if a.parallelism > 1 {
		var g errgroup.Group
		g.SetLimit(a.parallelism)
		for i := range taus {
			i := i
			g.Go(func() error { return sweepOne(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range taus {
			if err := sweepOne(i); err != nil {
				return nil, err
			}
		}
	}

	invalid := 0
	for _, r := range rows {
		if r.Invalid {
			invalid++
		}
	}
	a.logger.Debug("stability packet complete",
		"taus", len(taus),
		"invalid", invalid,
		"top_k", len(bl.regimes),
	)
	return rows, nil
}

func (a *Auditor) sweepRow(base engine.Config, tau float64, bl baseline, pre *engine.Frame) (StabilityRow, error) {
	row := StabilityRow{
		Tau:                tau,
		NearThresholdCount: nearThreshold(pre, base.Exclusion, tau),
	}

	art, err := a.Cycle(base.WithTau(tau), nil)
	if err != nil {
		if engine.IsRetentionError(err) {
			a.logger.Debug("sweep tau excludes every element", "tau", tau)
			row.DiscardedBudgetGlobal = 1.0
			row.Invalid = true
			return row, nil
		}
		return StabilityRow{}, fmt.Errorf("sweep cycle at tau=%g: %w", tau, err)
	}

	row.ActiveCount = len(art.ActiveSet)
	row.DiscardedBudgetGlobal = art.Frame.DiscardedBudgetGlobal
	row.JaccardVsBaseline = Jaccard(bl.activeIDs, art.ActiveIDs())
	row.SpearmanVsBaseline = Spearman(bl.rhos, regimeRhos(art, bl.regimes))
	return row, nil
}

func newBaseline(art *Artifacts, topK int) baseline {
	// The coherence map is already ordered by global pre-share.
	n := min(topK, len(art.CoherenceMap))
	bl := baseline{
		activeIDs: art.ActiveIDs(),
		regimes:   make([]string, n),
		rhos:      make([]float64, n),
	}
	for i := 0; i < n; i++ {
		bl.regimes[i] = art.CoherenceMap[i].RegimeID
		bl.rhos[i] = art.CoherenceMap[i].RhoGlobalPre
	}
	return bl
}

// regimeRhos looks up each regime's global pre-share in art, 0 if absent.
func regimeRhos(art *Artifacts, regimes []string) []float64 {
	byID := make(map[string]float64, len(art.CoherenceMap))
	for _, r := range art.CoherenceMap {
		byID[r.RegimeID] = r.RhoGlobalPre
	}
	out := make([]float64, len(regimes))
	for i, id := range regimes {
		out[i] = byID[id]
	}
	return out
}

// nearThreshold counts elements whose consulted pre-share lies in
// [0.9·tau, 1.1·tau].
func nearThreshold(pre *engine.Frame, mode engine.Exclusion, tau float64) int {
	lo, hi := 0.9*tau, 1.1*tau
	n := 0
	for _, r := range pre.Rows {
		s := r.Share(mode)
		if s >= lo && s <= hi {
			n++
		}
	}
	return n
}
