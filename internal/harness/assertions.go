package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Op)
			if ev.Caller != "" {
				fmt.Fprintf(&buf, " %s", ev.Caller)
			}
			fmt.Fprintf(&buf, " @%d -> %s %d\n", ev.Now, ev.Outcome, ev.Index)
		}
	}

	return buf.String()
}

// matchEvent reports whether ev satisfies the assertion's op, caller and
// outcome filters. Empty filters match anything.
func matchEvent(ev TraceEvent, a Assertion) bool {
	if a.Op != "" && ev.Op != a.Op {
		return false
	}
	if a.Caller != "" {
		want := a.Caller
		if c, err := ir.NormalizeCaller(a.Caller); err == nil {
			want = string(c)
		}
		if ev.Caller != want {
			return false
		}
	}
	if a.Outcome != "" && ev.Outcome != a.Outcome {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	parts := []string{"op=" + a.Op}
	if a.Caller != "" {
		parts = append(parts, "caller="+a.Caller)
	}
	if a.Outcome != "" {
		parts = append(parts, "outcome="+a.Outcome)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks if the trace contains a command matching the
// assertion's filters.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeFilter(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops first appear in the specified order.
// Ops don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if _, seen := positions[ev.Op]; !seen {
			positions[ev.Op] = i + 1 // 1-indexed for readability
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if matching commands appear exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeFilter(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads the board back from the store and compares the
// requested fields using subset semantics. With Cell set the fields are
// those of one cell (drawn, leased, owner, lease_expiry, tile); otherwise
// they are the board status fields.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	loaded, err := actx.Store.Load(actx.Ctx)
	if err != nil {
		return fmt.Errorf("final_state: load board: %w", err)
	}
	b, err := board.Restore(loaded.Snapshot)
	if err != nil {
		return fmt.Errorf("final_state: restore board: %w", err)
	}

	var actual map[string]any
	subject := "board"
	if a.Cell != nil {
		subject = fmt.Sprintf("cell %d", *a.Cell)
		actual = cellFields(b.Cell(*a.Cell))
	} else {
		actual = statusFields(b.Status(actx.Now))
	}

	// Sort keys so the first reported mismatch is deterministic.
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := a.Expect[key]
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q to exist", subject, key),
				Actual:   fmt.Sprintf("known fields: %s", strings.Join(fieldNames(actual), ", ")),
			}
		}
		if !stateValuesEqual(expected, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s %s = %v", subject, key, expected),
				Actual:   fmt.Sprintf("%s %s = %v", subject, key, got),
			}
		}
	}
	return nil
}

func cellFields(c board.Cell) map[string]any {
	return map[string]any{
		"drawn":        c.Drawn,
		"leased":       c.Leased(),
		"owner":        string(c.Owner),
		"lease_expiry": c.LeaseExpiry,
		"tile":         c.Tile,
	}
}

func statusFields(st board.Status) map[string]any {
	return map[string]any{
		"state":          string(st.State),
		"watermark":      st.Watermark,
		"window_lo":      st.WindowLo,
		"window_hi":      st.WindowHi,
		"ring":           st.Ring,
		"leases":         st.Leases,
		"expired_leases": st.ExpiredLeases,
		"drawn":          st.Drawn,
		"tile_size":      st.TileSize,
		"ttl":            st.TTL,
	}
}

func fieldNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// assertReplay rebuilds the board from its journal and requires it to match
// the stored board.
func assertReplay(actx *AssertionContext) error {
	report, err := engine.Replay(actx.Ctx, actx.Store)
	if err != nil {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "journal replays cleanly",
			Actual:   err.Error(),
		}
	}
	if !report.Matches() {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: "digest " + report.StoredDigest,
			Actual:   "digest " + report.Digest,
		}
	}
	return nil
}

// stateValuesEqual compares a YAML-decoded expected value with a board
// field. Integers compare by value regardless of width, and a tile compares
// equal to a list of its values.
func stateValuesEqual(expected, actual any) bool {
	return reflect.DeepEqual(normalizeValue(expected), normalizeValue(actual))
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case uint8:
		return int64(val)
	case uint64:
		return int64(val)
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	case ir.Tile:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = int64(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = normalizeValue(x)
		}
		return out
	default:
		return val
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context

	// Now is the time board status fields such as expired_leases are
	// computed at.
	Now int64
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state and replay
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertReplay:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx, assertion)
			} else {
				err = assertReplay(actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
