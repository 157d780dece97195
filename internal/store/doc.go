// Package store provides SQLite-backed persistence for archive sessions.
//
// Two tables:
//   - snapshots: a vault.State in record form, keyed by its content
//     fingerprint. Saving a state that is already stored moves it to the
//     head instead of writing a second copy.
//   - provenance_entries: the append-only provenance log. Writes are
//     idempotent on entry ID, so re-saving an exported log is harmless.
//
// # Ordering
//
// Snapshot order uses the seq column (logical save counter), never the
// wall clock. Provenance reads order by (ts, seq, id), the same order the
// in-memory provenance.Service uses, so a log read back from disk and
// re-imported sorts identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Records and change sets are stored as RFC 8785 canonical JSON produced
// by ir.MarshalCanonical.
package store
