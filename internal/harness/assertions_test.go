package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: "start", Outcome: "OK"},
		{Seq: 2, Op: "reserve", Caller: "alice", Outcome: "OK", Index: 1},
		{Seq: 3, Op: "reserve", Caller: "bob", Outcome: "OK", Index: 2},
		{Seq: 4, Op: "draw", Caller: "bob", Outcome: "EMPTY_TILE", Index: -1},
		{Seq: 5, Op: "draw", Caller: "alice", Outcome: "OK", Index: 1},
		{Seq: 0, Op: "status", Outcome: "OK"},
	}
}

func intPtr(v int) *int { return &v }

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "reserve"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "draw", Caller: "bob", Outcome: "EMPTY_TILE"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: "reserve", Caller: "  alice "}),
		"caller filter is normalized")

	err := assertTraceContains(trace, Assertion{Op: "draw", Caller: "bob", Outcome: "OK"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)

	assert.Error(t, assertTraceContains(trace, Assertion{Op: "finish"}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	t.Run("correct", func(t *testing.T) {
		assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{"start", "reserve", "draw", "status"}}))
	})

	t.Run("intervening ops allowed", func(t *testing.T) {
		assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{"start", "status"}}))
	})

	t.Run("wrong order", func(t *testing.T) {
		err := assertTraceOrder(trace, Assertion{Ops: []string{"draw", "reserve"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "draw (pos 4) should be before reserve (pos 2)")
	})

	t.Run("missing op", func(t *testing.T) {
		err := assertTraceOrder(trace, Assertion{Ops: []string{"start", "finish"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing op: finish")
	})
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name    string
		a       Assertion
		wantErr bool
	}{
		{"exact", Assertion{Op: "reserve", Count: 2}, false},
		{"with outcome", Assertion{Op: "draw", Outcome: "OK", Count: 1}, false},
		{"with caller", Assertion{Op: "draw", Caller: "bob", Count: 1}, false},
		{"zero", Assertion{Op: "finish", Count: 0}, false},
		{"too few", Assertion{Op: "reserve", Count: 3}, true},
		{"too many", Assertion{Op: "draw", Count: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(trace, tt.a)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"int vs int", 3, 3, true},
		{"int vs int64", 3, int64(3), true},
		{"int vs different int64", 3, int64(4), false},
		{"string", "active", "active", true},
		{"string mismatch", "active", "closed", false},
		{"bool", true, true, true},
		{"bool vs int", true, 1, false},
		{"tile vs list", []any{1, 2}, ir.Tile{1, 2}, true},
		{"tile vs shorter list", []any{1}, ir.Tile{1, 2}, false},
		{"empty tile vs empty list", []any{}, ir.Tile(nil), true},
		{"float whole number", float64(2), 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

// newStateContext builds a store holding an active board with alice's lease
// on 1 and a drawn cell 2.
func newStateContext(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := board.Config{TTL: 10, TileSize: 2, Center: ir.EmptyTile(2)}
	b, err := board.New(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	_, err = b.Reserve("alice", 0)
	require.NoError(t, err)
	_, err = b.Reserve("bob", 0)
	require.NoError(t, err)
	_, err = b.Draw("bob", ir.Tile{4, 5}, 0)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, st.Init(ctx, "assertions", b.Snapshot()))
	return &AssertionContext{Store: st, Ctx: ctx, Now: 11}
}

func TestAssertFinalState(t *testing.T) {
	actx := newStateContext(t)

	t.Run("board fields", func(t *testing.T) {
		err := assertFinalState(actx, Assertion{Expect: map[string]any{
			"state":          "active",
			"watermark":      1,
			"leases":         1,
			"expired_leases": 1,
			"drawn":          1,
		}})
		assert.NoError(t, err)
	})

	t.Run("cell fields", func(t *testing.T) {
		assert.NoError(t, assertFinalState(actx, Assertion{Cell: intPtr(1), Expect: map[string]any{
			"owner":        "alice",
			"leased":       true,
			"lease_expiry": 10,
			"drawn":        false,
		}}))
		assert.NoError(t, assertFinalState(actx, Assertion{Cell: intPtr(2), Expect: map[string]any{
			"drawn": true,
			"tile":  []any{4, 5},
		}}))
	})

	t.Run("untouched cell", func(t *testing.T) {
		assert.NoError(t, assertFinalState(actx, Assertion{Cell: intPtr(40), Expect: map[string]any{
			"drawn":  false,
			"leased": false,
		}}))
	})

	t.Run("mismatch", func(t *testing.T) {
		err := assertFinalState(actx, Assertion{Expect: map[string]any{"state": "closed"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "board state = closed")
		assert.Contains(t, err.Error(), "board state = active")
	})

	t.Run("unknown field", func(t *testing.T) {
		err := assertFinalState(actx, Assertion{Cell: intPtr(1), Expect: map[string]any{"colour": "red"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `cell 1 field "colour" to exist`)
	})
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	for _, ev := range sampleTrace() {
		result.AddTrace(ev)
	}

	t.Run("all pass", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertTraceContains, Op: "start"},
			{Type: AssertTraceOrder, Ops: []string{"start", "draw"}},
			{Type: AssertTraceCount, Op: "status", Count: 1},
		}, nil)
		assert.Empty(t, errs)
	})

	t.Run("some fail", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertTraceContains, Op: "start"},
			{Type: AssertTraceCount, Op: "status", Count: 2},
			{Type: AssertTraceContains, Op: "finish"},
		}, nil)
		assert.Len(t, errs, 2)
	})

	t.Run("state assertions need a store", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{
			{Type: AssertFinalState, Expect: map[string]any{"state": "active"}},
			{Type: AssertReplay},
		}, nil)
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0], "final_state requires database context")
		assert.Contains(t, errs[1], "replay requires database context")
	})

	t.Run("unknown type", func(t *testing.T) {
		errs := EvaluateAssertions(result, []Assertion{{Type: "vibes"}}, nil)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0], `unknown assertion type "vibes"`)
	})
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 occurrences of op=draw",
		Actual:   "1 occurrences",
		Trace: []TraceEvent{
			{Seq: 1, Op: "start", Outcome: "OK"},
			{Seq: 2, Op: "draw", Caller: "alice", Now: 7, Outcome: "NOT_RESERVED", Index: -1},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 2 occurrences of op=draw")
	assert.Contains(t, msg, "Actual: 1 occurrences")
	assert.Contains(t, msg, "[1] start @0 -> OK 0")
	assert.Contains(t, msg, "[2] draw alice @7 -> NOT_RESERVED -1")
}
