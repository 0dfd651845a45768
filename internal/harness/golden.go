package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/huf/internal/audit"
	"github.com/roach88/huf/internal/ir"
)

// Snapshot captures the stable part of a scenario result.
// Shares are rendered with six decimals so that the golden files survive
// last-bit float differences across platforms.
type Snapshot struct {
	ScenarioName string
	Artifacts    *audit.Artifacts
	Stability    []audit.StabilityRow
}

func share(f float64) ir.IRString {
	return ir.IRString(fmt.Sprintf("%.6f", f))
}

// toCanonicalMap converts a Snapshot to an IRObject for canonical JSON.
// This is required because ir.MarshalCanonical rejects floats.
func (s *Snapshot) toCanonicalMap() ir.IRObject {
	active := make(ir.IRArray, len(s.Artifacts.ActiveSet))
	for i, r := range s.Artifacts.ActiveSet {
		active[i] = ir.IRObject{
			"rank":            ir.IRInt(r.Rank),
			"item_id":         ir.IRString(r.ItemID),
			"regime_id":       ir.IRString(r.RegimeID),
			"rho_global_post": share(r.RhoGlobalPost),
		}
	}

	regimes := make(ir.IRArray, len(s.Artifacts.CoherenceMap))
	for i, r := range s.Artifacts.CoherenceMap {
		regimes[i] = ir.IRObject{
			"regime_id":         ir.IRString(r.RegimeID),
			"rho_global_pre":    share(r.RhoGlobalPre),
			"rho_global_post":   share(r.RhoGlobalPost),
			"rho_discarded_pre": share(r.RhoDiscardedPre),
			"local_unity_ok":    ir.IRBool(r.LocalUnityOK),
		}
	}

	obj := ir.IRObject{
		"scenario":                ir.IRString(s.ScenarioName),
		"active_set":              active,
		"coherence_map":           regimes,
		"discarded_budget_global": share(s.Artifacts.ErrorBudget.DiscardedBudgetGlobal),
	}

	if len(s.Stability) > 0 {
		rows := make(ir.IRArray, len(s.Stability))
		for i, r := range s.Stability {
			rows[i] = ir.IRObject{
				"tau":                     ir.Decimal(r.Tau),
				"active_count":            ir.IRInt(r.ActiveCount),
				"discarded_budget_global": share(r.DiscardedBudgetGlobal),
				"jaccard_vs_baseline":     share(r.JaccardVsBaseline),
				"spearman_vs_baseline":    share(r.SpearmanVsBaseline),
				"near_threshold_count":    ir.IRInt(r.NearThresholdCount),
				"invalid":                 ir.IRBool(r.Invalid),
			}
		}
		obj["stability"] = rows
	}
	return obj
}

// MarshalSnapshot renders the snapshot as canonical JSON.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	if s.Artifacts == nil {
		return nil, fmt.Errorf("snapshot %s has no artifacts", s.ScenarioName)
	}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run or produced no artifacts.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(&Snapshot{
		ScenarioName: scenarioName,
		Artifacts:    result.Artifacts,
		Stability:    result.Stability,
	})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
