// Package audit implements the HUF cycle orchestrator.
//
// An Auditor wraps one immutable element table and produces, for each
// threshold configuration, the four required artifacts plus a run stamp:
//
//   - Coherence map: one row per regime (pre, post and discarded share sums,
//     local unity check), largest regimes first
//   - Active set: kept elements ranked by renormalized global share
//   - Trace report: six-field provenance record per kept element
//   - Error budget: discarded fraction plus an optional domain metric
//
// Cycle output is validated before it is returned: a missing artifact or
// trace field is an internal error, never a partial result.
//
// The stability packet repeats the cycle across a threshold sweep and
// reports how the decision moves relative to the first (baseline)
// threshold. A threshold that would exclude everything is recorded as an
// invalid row instead of failing the sweep.
//
// Auditor holds no mutable state. Cycles may be run concurrently; the
// stability packet does so itself when configured WithParallelism.
package audit
