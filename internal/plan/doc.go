// Package plan loads audit plans.
//
// A plan names the dataset and its adapter, the threshold configuration,
// the optional error metric, an optional stability sweep, and where output
// goes. Plans are written in CUE, YAML or JSON and validated against the
// embedded #Plan schema; unknown fields are rejected.
//
//	dataset: {kind: "elements", path: "elements.csv"}
//	config: {exclusion: "global", tau: 0.03}
//	sweep: {scale: [0.8, 0.9, 1.0, 1.1, 1.2]}
//	output: {dir: "out", ledger: "huf.db"}
//
// Relative dataset, output and ledger paths resolve against the plan
// file's directory.
package plan
