// Package harness runs board scenarios and checks their traces.
//
// A scenario is a YAML file listing commands against a fresh board. The
// harness applies them through a real engine over an in-memory store, with a
// manual time source so lease expiry is exact, and records one trace event
// per command. Traces can be checked with assertions and compared against
// golden files.
//
// # Scenario Format
//
//	name: ring1_capacity
//	description: "Ring 1 admits exactly four leases"
//	board: boards/small.cue      # optional, relative to the scenario file
//	flow:
//	  - op: start
//	  - op: reserve
//	    caller: alice
//	    expect:
//	      outcome: OK
//	      index: 1
//	  - op: draw
//	    caller: alice
//	    advance: 10              # move time forward before this step
//	    fill: 7                  # tile with every value 7; or tile: [..]
//	assertions:
//	  - type: trace_count
//	    op: reserve
//	    outcome: OK
//	    count: 1
//	  - type: final_state
//	    cell: 1
//	    expect: { drawn: true }
//	  - type: replay
//
// # Assertion Types
//
//   - trace_contains: a command with the given op, caller and outcome ran
//   - trace_order: the given ops ran in this relative order
//   - trace_count: a command matching op (and outcome) ran exactly N times
//   - final_state: the stored board (or one stored cell) has these fields
//   - replay: replaying the journal reproduces the stored board
//
// # Deterministic Testing
//
// Time starts at 0 and moves only through at/advance, board ids are fixed
// per scenario, and seqs come from the engine's logical clock, so a scenario
// always produces byte-identical canonical traces.
package harness
