// Package engine serializes every command against one board and persists
// its outcome.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every command is applied by one goroutine, either the Run loop (serve
// mode, commands arrive through Submit) or the owner calling Apply directly
// (one-shot CLI mode). The board is never touched concurrently, so
// reservations and draws are linearizable without locks in the board.
//
// Command Flow:
//  1. The command is stamped with now from the TimeSource, clamped so it
//     never runs behind the last journaled time
//  2. Mutating commands take the next seq from Clock and a content-addressed
//     id from ir.CommandID
//  3. The command runs against the in-memory board
//  4. The journal entry, board header and touched cells commit in one store
//     transaction, rejected commands included
//  5. If the commit fails the board is reloaded from the store
//
// Queries (index, neighbors, status) are evaluated the same way but never
// journaled.
//
// Replay:
// Replay rebuilds the board from its genesis config by re-applying the
// journal and compares ids, outcomes and the final state digest against the
// store.
package engine
