// Package store provides the SQLite-backed run ledger.
//
// The ledger is append-only:
//   - runs: one row per cycle, keyed by run_id, with the run stamp, the
//     canonical config text and the flattened error budget
//   - active_set, trace_records, coherence_map: artifact rows per run
//   - stability_batches, stability_rows: stability packets keyed by a
//     UUIDv7 batch id
//
// # Identity
//
// The stored config is the canonical identity form, so hashing it again
// reproduces the run's param_hash. Writes are idempotent per run_id.
//
// # Ordering
//
// Listings order by the seq column (insertion order), never by
// created_utc; artifact rows come back in rank or ordinal order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - foreign_keys=ON: Enforce referential integrity
package store
