// Package harness runs audit scenarios as executable contract tests.
//
// A scenario is a small inline element table, one threshold configuration,
// an optional tau sweep, and a list of assertions over the resulting
// artifacts.
//
// # Scenario Format
//
//	name: sample_global
//	description: "Two regimes, global exclusion at tau=0.03"
//	elements:
//	  - { element_id: R1/e0, regime_id: R1, value: 10 }
//	  - { element_id: R2/e0, regime_id: R2, value: 8 }
//	config:
//	  exclusion: global
//	  tau: 0.03
//	sweep:
//	  taus: [0.02, 0.03, 0.05]
//	assertions:
//	  - type: active_count
//	    count: 2
//	  - type: excluded
//	    ids: [R2/e4]
//
// # Assertion Types
//
//   - active_count: number of active-set entries
//   - active_order: exact active-set id order
//   - excluded: listed ids were excluded
//   - kept: listed ids are in the active set
//   - error_code: the cycle (or sweep) failed with this code
//   - discarded_budget: discarded_budget_global within tolerance
//   - unity: global post-shares sum to 1 and every regime with kept
//     elements passes its local unity check
//   - stability_rows: number of stability rows
//   - invalid_taus: exactly these swept taus produced invalid rows
//
// # Deterministic Testing
//
// Every scenario runs with a fixed clock at testutil.Epoch and a dataset id
// derived from the scenario name, so run stamps and golden snapshots are
// identical across runs.
package harness
