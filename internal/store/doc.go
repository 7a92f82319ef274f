// Package store provides SQLite-backed durable storage for a mosaic board.
//
// The database holds exactly one board:
//   - board: singleton row with config, lifecycle state, watermark, last seq
//   - cells: every cell that carries state (drawn or leased)
//   - journal: append-only log of mutating commands and their outcomes
//
// # Patterns
//
// Logical time only:
//   - Journal order is seq INTEGER (logical clock), NEVER wall time
//   - The board row's last_seq must equal seq-1 for a commit to apply, so a
//     second writer on the same file fails instead of interleaving
//
// Idempotent commits:
//   - Journal ids are content-addressed (internal/ir)
//   - Re-committing an entry with the same id is a silent no-op
//
// Deterministic reads:
//   - All multi-row reads use ORDER BY on the primary key
//
// Invariants mirrored as CHECK constraints:
//   - a drawn cell has no owner
//   - owner and lease_expiry are both set or both NULL
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
