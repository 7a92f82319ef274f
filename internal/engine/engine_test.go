package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
	"github.com/roach88/mosaic/internal/testutil"
)

func setupEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	s := testutil.NewBoardStore(t, board.DefaultConfig())
	e, err := New(context.Background(), s, opts...)
	require.NoError(t, err)
	return e, s
}

func tile(v uint8) ir.Tile {
	return testutil.Tile(ir.DefaultTileSize, v)
}

func mustApply(t *testing.T, e *Engine, cmd Command) Result {
	t.Helper()
	res, err := e.Apply(context.Background(), cmd)
	require.NoError(t, err, "apply %s", cmd.Op)
	return res
}

func readJournal(t *testing.T, s *store.Store) []store.JournalEntry {
	t.Helper()
	entries, err := s.ReadJournal(context.Background())
	require.NoError(t, err)
	return entries
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
	last  board.Status
}

func (o *recordingObserver) CommandApplied(op Op, outcome string, status board.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s:%s", op, outcome))
	o.last = status
}

func TestEngine_New_Uninitialized(t *testing.T) {
	s, err := store.Open(t.TempDir() + "/empty.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = New(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestEngine_New_LoadsBoard(t *testing.T) {
	e, _ := setupEngine(t)

	assert.Equal(t, testutil.TestBoardID, e.BoardID())
	assert.Equal(t, int64(0), e.clock.Current())
	assert.Equal(t, board.StateIdle, e.board.State())
}

func TestEngine_Apply_StampsSeqAndID(t *testing.T) {
	e, s := setupEngine(t, WithTimeSource(FixedTime(10)))

	res := mustApply(t, e, Command{Op: OpStart})
	assert.Equal(t, int64(1), res.Seq)
	assert.Equal(t, int64(10), res.Now)

	wantID, err := ir.CommandID(testutil.TestBoardID, "start", "", nil, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, wantID, res.ID)

	entries := readJournal(t, s)
	require.Len(t, entries, 1)
	assert.Equal(t, wantID, entries[0].ID)
	assert.Equal(t, store.OutcomeOK, entries[0].Outcome)
}

func TestEngine_Apply_JournalsRejections(t *testing.T) {
	e, s := setupEngine(t)

	mustApply(t, e, Command{Op: OpStart})
	res, err := e.Apply(context.Background(), Command{Op: OpStart})
	require.Error(t, err)
	assert.ErrorIs(t, err, board.ErrAlreadyStarted)
	assert.Equal(t, int64(2), res.Seq, "rejections consume a seq")

	entries := readJournal(t, s)
	require.Len(t, entries, 2)
	assert.Equal(t, string(board.CodeAlreadyStarted), entries[1].Outcome)
	assert.Equal(t, -1, entries[1].Index)
}

func TestEngine_Apply_QueriesAreNotJournaled(t *testing.T) {
	e, s := setupEngine(t)
	mustApply(t, e, Command{Op: OpStart})

	res := mustApply(t, e, Command{Op: OpIndex, Caller: "alice"})
	assert.Equal(t, 0, res.Index)
	assert.Zero(t, res.Seq)
	assert.Empty(t, res.ID)

	res = mustApply(t, e, Command{Op: OpStatus})
	require.NotNil(t, res.Status)
	assert.Equal(t, board.StateActive, res.Status.State)

	assert.Len(t, readJournal(t, s), 1)
	assert.Equal(t, int64(1), e.clock.Current())
}

func TestEngine_Apply_UnknownOp(t *testing.T) {
	e, s := setupEngine(t)

	_, err := e.Apply(context.Background(), Command{Op: "paint"})
	require.Error(t, err)
	assert.True(t, IsUnknownOp(err))
	assert.Empty(t, readJournal(t, s))
}

func TestEngine_Apply_ReserveDrawNeighbors(t *testing.T) {
	e, _ := setupEngine(t)
	mustApply(t, e, Command{Op: OpStart})

	res := mustApply(t, e, Command{Op: OpReserve, Caller: "alice"})
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, "(0,1)", res.Coordinate.String())

	res = mustApply(t, e, Command{Op: OpIndex, Caller: "alice"})
	assert.Equal(t, 1, res.Index)

	res = mustApply(t, e, Command{Op: OpDraw, Caller: "alice", Tile: tile(7)})
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, 2, e.board.Watermark())

	mustApply(t, e, Command{Op: OpReserve, Caller: "bob"})
	res = mustApply(t, e, Command{Op: OpNeighbors, Caller: "bob"})
	assert.Equal(t, 2, res.Index)
	require.NotNil(t, res.Neighbors)
	// Cell 2 is (1,0); its left neighbor is the center.
	assert.True(t, res.Neighbors[3].Equal(ir.EmptyTile(ir.DefaultTileSize)))
}

func TestEngine_Apply_NormalizesTile(t *testing.T) {
	e, s := setupEngine(t)
	mustApply(t, e, Command{Op: OpStart})

	// Tiles on non-draw commands and empty draw tiles are journaled as absent.
	mustApply(t, e, Command{Op: OpReserve, Caller: "alice", Tile: tile(3)})
	_, err := e.Apply(context.Background(), Command{Op: OpDraw, Caller: "alice", Tile: ir.Tile{}})
	assert.ErrorIs(t, err, board.ErrInvalidTile)

	entries := readJournal(t, s)
	require.Len(t, entries, 3)
	assert.Nil(t, entries[1].Tile)
	assert.Nil(t, entries[2].Tile)
}

func TestEngine_Apply_SurvivesRestart(t *testing.T) {
	clock := testutil.NewManualTime(100)
	e, s := setupEngine(t, WithTimeSource(clock))

	mustApply(t, e, Command{Op: OpStart})
	mustApply(t, e, Command{Op: OpReserve, Caller: "alice"})
	mustApply(t, e, Command{Op: OpReserve, Caller: "bob"})
	clock.Advance(5)
	mustApply(t, e, Command{Op: OpDraw, Caller: "alice", Tile: tile(9)})

	want, err := e.Digest()
	require.NoError(t, err)

	e2, err := New(context.Background(), s, WithTimeSource(clock))
	require.NoError(t, err)
	got, err := e2.Digest()
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, int64(4), e2.clock.Current())
	assert.Equal(t, int64(105), e2.lastNow)

	res := mustApply(t, e2, Command{Op: OpIndex, Caller: "bob"})
	assert.Equal(t, 2, res.Index)
}

func TestEngine_Apply_LeaseExpiry(t *testing.T) {
	clock := testutil.NewManualTime(0)
	e, _ := setupEngine(t, WithTimeSource(clock))
	mustApply(t, e, Command{Op: OpStart})

	for _, c := range []ir.Caller{"a", "b", "c", "d"} {
		mustApply(t, e, Command{Op: OpReserve, Caller: c})
	}
	_, err := e.Apply(context.Background(), Command{Op: OpReserve, Caller: "e"})
	assert.ErrorIs(t, err, board.ErrCapacityExceeded)

	// Expiry is strict: at exactly now+TTL the leases still hold.
	clock.Set(board.DefaultTTL)
	_, err = e.Apply(context.Background(), Command{Op: OpReserve, Caller: "e"})
	assert.ErrorIs(t, err, board.ErrCapacityExceeded)

	clock.Advance(1)
	res := mustApply(t, e, Command{Op: OpReserve, Caller: "e"})
	assert.Equal(t, 1, res.Index)
}

func TestEngine_Now_NeverRunsBackwards(t *testing.T) {
	e, s := setupEngine(t, WithTimeSource(FixedTime(100)))
	mustApply(t, e, Command{Op: OpStart})

	late, err := New(context.Background(), s, WithTimeSource(FixedTime(50)))
	require.NoError(t, err)

	res := mustApply(t, late, Command{Op: OpReserve, Caller: "alice"})
	assert.Equal(t, int64(100), res.Now)

	entries := readJournal(t, s)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(100), entries[1].Now)
}

func TestEngine_Apply_CommitFailureReloads(t *testing.T) {
	first, s := setupEngine(t)
	second, err := New(context.Background(), s)
	require.NoError(t, err)

	mustApply(t, first, Command{Op: OpStart})

	// second still believes the board is idle at seq 0.
	_, err = second.Apply(context.Background(), Command{Op: OpReserve, Caller: "alice"})
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))
	assert.True(t, errors.Is(err, store.ErrSeqConflict))
	assert.Len(t, readJournal(t, s), 1)

	// After the reload it sees the committed start.
	assert.Equal(t, board.StateActive, second.board.State())
	res := mustApply(t, second, Command{Op: OpReserve, Caller: "alice"})
	assert.Equal(t, int64(2), res.Seq)
	assert.Equal(t, 1, res.Index)
}

func TestEngine_Observer(t *testing.T) {
	obs := &recordingObserver{}
	e, _ := setupEngine(t, WithObserver(obs))

	mustApply(t, e, Command{Op: OpStart})
	mustApply(t, e, Command{Op: OpReserve, Caller: "alice"})
	_, _ = e.Apply(context.Background(), Command{Op: OpDraw, Caller: "bob", Tile: tile(1)})
	mustApply(t, e, Command{Op: OpStatus})

	assert.Equal(t, []string{
		"start:OK",
		"reserve:OK",
		"draw:NOT_RESERVED",
		"status:OK",
	}, obs.calls)
	assert.Equal(t, 1, obs.last.Leases)
}

func TestEngine_RunSubmit_Concurrent(t *testing.T) {
	e, s := setupEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	_, err := e.Submit(context.Background(), Command{Op: OpStart})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indices = map[int]ir.Caller{}
	)
	for _, c := range []ir.Caller{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(c ir.Caller) {
			defer wg.Done()
			res, err := e.Submit(context.Background(), Command{Op: OpReserve, Caller: c})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			indices[res.Index] = c
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	assert.Len(t, indices, 4, "every caller gets a distinct cell")
	for idx := 1; idx <= 4; idx++ {
		assert.Contains(t, indices, idx)
	}

	_, err = e.Submit(context.Background(), Command{Op: OpReserve, Caller: "e"})
	assert.ErrorIs(t, err, board.ErrCapacityExceeded)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = e.Submit(context.Background(), Command{Op: OpStatus})
	assert.True(t, IsStopped(err))

	entries := readJournal(t, s)
	require.Len(t, entries, 6)
	for i, entry := range entries {
		assert.Equal(t, int64(i+1), entry.Seq)
	}
}

func TestEngine_Stop(t *testing.T) {
	e, _ := setupEngine(t)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	_, err := e.Submit(context.Background(), Command{Op: OpStart})
	require.NoError(t, err)

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = e.Submit(context.Background(), Command{Op: OpStatus})
	assert.True(t, IsStopped(err))
}

func TestEngine_Submit_CancelledContext(t *testing.T) {
	e, s := setupEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Without a Run loop the command is never picked up; Submit returns on
	// the cancelled context.
	_, err := e.Submit(ctx, Command{Op: OpStart})
	assert.ErrorIs(t, err, context.Canceled)

	// A Run loop that later dequeues it skips it.
	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go e.Run(runCtx)

	res, err := e.Submit(context.Background(), Command{Op: OpStart})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Seq)
	assert.Len(t, readJournal(t, s), 1)
}
