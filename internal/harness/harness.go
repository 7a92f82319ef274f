package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/boardspec"
	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
	"github.com/roach88/mosaic/internal/testutil"
)

// Harness runs one scenario against a real engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	time   *testutil.ManualTime
	config board.Config
	logger *slog.Logger
}

// BoardID returns the fixed board id a scenario runs under.
func BoardID(s *Scenario) string {
	return "scenario-" + s.Name
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Compile the board definition (or take the default board)
//  2. Create and initialize an in-memory store
//  3. Apply every flow step through the engine, checking expect clauses
//  4. Evaluate assertions against the trace and the stored board
//
// A returned error means the scenario could not run; failed expectations
// and assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	spec := boardspec.Default()
	if scenario.Board != "" {
		var err error
		if spec, err = boardspec.LoadFile(scenario.Board); err != nil {
			return nil, fmt.Errorf("load board: %w", err)
		}
	}
	cfg := spec.Config()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	genesis, err := board.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("new board: %w", err)
	}
	if err := st.Init(ctx, BoardID(scenario), genesis.Snapshot()); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	h := &Harness{
		store:  st,
		time:   testutil.NewManualTime(0),
		config: cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.engine, err = engine.New(ctx, st,
		engine.WithTimeSource(h.time),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	status, err := h.engine.Apply(ctx, engine.Command{Op: engine.OpStatus})
	if err != nil {
		return nil, fmt.Errorf("final status: %w", err)
	}
	result.Status = status.Status
	if result.Digest, err = h.engine.Digest(); err != nil {
		return nil, fmt.Errorf("final digest: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		Now:   h.time.Now(),
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// executeFlow applies every step and validates expect clauses.
//
// Board rejections are expected traffic and land in the trace. Any other
// engine error aborts the scenario.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		if step.At != nil {
			h.time.Set(*step.At)
		}
		h.time.Advance(step.Advance)

		cmd, err := h.command(step)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d]: %v", i, err))
			continue
		}

		res, opErr := h.engine.Apply(ctx, cmd)
		if opErr != nil && board.CodeOf(opErr) == "" {
			return fmt.Errorf("flow[%d] %s: %w", i, step.Op, opErr)
		}

		ev := TraceEvent{
			Seq:     res.Seq,
			Op:      string(cmd.Op),
			Caller:  string(cmd.Caller),
			Now:     h.time.Now(),
			Outcome: engine.Outcome(opErr),
			Index:   res.Index,
		}
		if opErr != nil {
			ev.Index = -1
		}
		result.AddTrace(ev)

		h.logger.Debug("step applied",
			"step", i,
			"op", ev.Op,
			"caller", ev.Caller,
			"outcome", ev.Outcome,
			"index", ev.Index,
		)

		if step.Expect == nil {
			continue
		}
		if ev.Outcome != step.Expect.Outcome {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s",
				i, step.Op, step.Expect.Outcome, ev.Outcome))
			continue
		}
		if step.Expect.Index != nil && ev.Index != *step.Expect.Index {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected index %d, got %d",
				i, step.Op, *step.Expect.Index, ev.Index))
		}
	}
	return nil
}

// command builds the engine command for a step.
func (h *Harness) command(step Step) (engine.Command, error) {
	cmd := engine.Command{Op: engine.Op(step.Op)}

	if step.Caller != "" {
		caller, err := ir.NormalizeCaller(step.Caller)
		if err != nil {
			return cmd, err
		}
		cmd.Caller = caller
	}

	switch {
	case step.Tile != nil:
		cmd.Tile = make(ir.Tile, len(step.Tile))
		for i, v := range step.Tile {
			cmd.Tile[i] = uint8(v)
		}
	case step.Fill != nil:
		cmd.Tile = make(ir.Tile, h.config.TileSize)
		for i := range cmd.Tile {
			cmd.Tile[i] = uint8(*step.Fill)
		}
	}
	return cmd, nil
}
