// Package adapter maps raw input files onto element tables.
//
// Every adapter returns a validated *engine.Table together with an
// audit.Meta whose DatasetID is derived from the input file fingerprint
// (name|size|mtime), so the same snapshot always yields the same dataset
// identity. Adapters carry their provenance on each element: InputsRef is
// the fingerprint, MethodRef names the mapping, TracePath records the
// grouping keys.
//
// Supported inputs:
//   - LoadElements: a generic element table (CSV, TSV, JSONL)
//   - VectorDB: a retrieval dump, one hit per record
//   - TrafficPhaseBand, TrafficAnomaly: signal phase status logs
package adapter
