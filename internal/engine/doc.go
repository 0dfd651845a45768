// Package engine implements the HUF normalizer and exclusion engine.
//
// The engine takes an immutable element table and a threshold
// configuration and produces a Frame: every element's global and local
// share before exclusion, the exclusion decision, and the renormalized
// shares of the retained subset.
//
// PIPELINE:
//
//  1. Global pre-share: value / total value (fatal if total <= 0)
//  2. Local pre-share: value / regime total (0 when the regime total is 0)
//  3. Exclusion predicate on the pre-shares (global, local or dual)
//  4. Discarded budget: excluded value / total value
//  5. Retention guard: excluding every element is fatal
//  6. Global post-share over the kept subset (sums to 1)
//  7. Local post-share within each regime over the kept subset
//
// Every stage visits each element exactly once. Results never depend on
// iteration order; rows are reported in input order, which callers treat
// as a presentation contract only.
//
// The engine is pure and stateless across calls. It never mutates the
// caller's table, so independent cycles may run concurrently.
package engine
