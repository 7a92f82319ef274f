package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/engine"
)

func TestInitCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mosaic.db")

	out, err := executeCLI(t, "init", "--db", db, "--board", smallBoard, "--format", "json")
	require.NoError(t, err)

	var res InitResult
	resp := decodeResponse(t, out, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, InitResult{BoardID: "board-0001", Database: db, TTL: 10, TileSize: 4}, res)
}

func TestInitCommandDefaultBoard(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mosaic.db")

	out, err := executeCLI(t, "init", "--db", db, "--id", "b1")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized board b1")
	assert.Contains(t, out, "ttl 1800, tile size 16")
}

func TestInitCommandTwice(t *testing.T) {
	db := newTestDB(t)

	_, err := executeCLI(t, "init", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "already holds a board")
}

func TestInitCommandBadBoardFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cue")
	writeFile(t, bad, "board: { tile_size: 0 }\n")

	_, err := executeCLI(t, "init", "--db", filepath.Join(dir, "mosaic.db"), "--board", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "tile_size")
}

func TestBoardCommandWithoutInit(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	_, err := executeCLI(t, "status", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run mosaic init")
}

func TestBoardLifecycle(t *testing.T) {
	db := newTestDB(t)

	// Reserve before start is rejected.
	out, err := executeCLI(t, "reserve", "--db", db, "--caller", "alice", "--now", "99", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, string(board.CodeNotStarted), resp.Error.Code)

	var res engine.Result
	out, err = executeCLI(t, "start", "--db", db, "--now", "100", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.Equal(t, engine.OpStart, res.Op)
	assert.Equal(t, int64(2), res.Seq, "the rejected reserve is journaled as seq 1")

	out, err = executeCLI(t, "start", "--db", db, "--now", "100")
	require.Error(t, err)
	assert.Contains(t, out, "Error [ALREADY_STARTED]")

	out, err = executeCLI(t, "finish", "--db", db, "--now", "101")
	require.NoError(t, err)
	assert.Contains(t, out, "Board finished (seq 4)")

	out, err = executeCLI(t, "start", "--db", db, "--now", "102", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, string(board.CodeAlreadyFinished), decodeResponse(t, out, nil).Error.Code)
}

func TestReserveAndDraw(t *testing.T) {
	db := newActiveTestDB(t)

	var res engine.Result
	out, err := executeCLI(t, "reserve", "--db", db, "--caller", "alice", "--now", "100", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.Equal(t, 1, res.Index)
	assert.NotEmpty(t, res.ID)

	out, err = executeCLI(t, "reserve", "--db", db, "--caller", "bob", "--now", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Reserved cell 2")

	// Renewing keeps the same cell.
	out, err = executeCLI(t, "reserve", "--db", db, "--caller", "alice", "--now", "105", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.Equal(t, 1, res.Index)

	out, err = executeCLI(t, "index", "--db", db, "--caller", "alice", "--now", "105", "--format", "json")
	require.NoError(t, err)
	res = engine.Result{}
	decodeResponse(t, out, &res)
	assert.Equal(t, 1, res.Index)
	assert.Zero(t, res.Seq, "queries are not journaled")

	out, err = executeCLI(t, "draw", "--db", db, "--caller", "alice", "--tile", "9,8,7,6", "--now", "106", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &res)
	assert.Equal(t, engine.OpDraw, res.Op)
	assert.Equal(t, 1, res.Index)

	// The lease was consumed by the draw.
	out, err = executeCLI(t, "draw", "--db", db, "--caller", "alice", "--tile", "1,1,1,1", "--now", "107", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, string(board.CodeNotReserved), decodeResponse(t, out, nil).Error.Code)

	out, err = executeCLI(t, "index", "--db", db, "--caller", "alice", "--now", "107")
	require.NoError(t, err)
	assert.Contains(t, out, "No lease held")

	var status struct {
		Status board.Status `json:"status"`
	}
	out, err = executeCLI(t, "status", "--db", db, "--now", "107", "--format", "json")
	require.NoError(t, err)
	decodeResponse(t, out, &status)
	assert.Equal(t, board.Status{
		State:     board.StateActive,
		Watermark: 2,
		WindowLo:  2,
		WindowHi:  6,
		Ring:      1,
		Leases:    1,
		Drawn:     1,
		TileSize:  4,
		TTL:       10,
	}, status.Status)
}

func TestDrawRejections(t *testing.T) {
	db := newActiveTestDB(t)
	_, err := executeCLI(t, "reserve", "--db", db, "--caller", "alice", "--now", "100")
	require.NoError(t, err)

	tests := []struct {
		name string
		tile string
		code board.ErrorCode
	}{
		{"unparsable", "1,2,x,4", board.CodeInvalidTile},
		{"out of range", "1,2,3,256", board.CodeInvalidTile},
		{"wrong length", "1,2,3", board.CodeInvalidTile},
		{"all zero", "0,0,0,0", board.CodeEmptyTile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCLI(t, "draw", "--db", db, "--caller", "alice", "--tile", tt.tile, "--now", "101", "--format", "json")
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Equal(t, string(tt.code), decodeResponse(t, out, nil).Error.Code)
		})
	}

	// Rejected draws leave the lease in place.
	out, err := executeCLI(t, "index", "--db", db, "--caller", "alice", "--now", "101")
	require.NoError(t, err)
	assert.Contains(t, out, "Cell 1 at")
}

func TestCallerValidation(t *testing.T) {
	db := newActiveTestDB(t)

	out, err := executeCLI(t, "reserve", "--db", db, "--now", "100", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, string(board.CodeInvalidCaller), decodeResponse(t, out, nil).Error.Code)

	out, err = executeCLI(t, "reserve", "--db", db, "--caller", "bad\x00caller", "--now", "100", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, string(board.CodeInvalidCaller), decodeResponse(t, out, nil).Error.Code)

	// Surrounding whitespace is trimmed, so both spellings hold one lease.
	out, err = executeCLI(t, "reserve", "--db", db, "--caller", "  carol ", "--now", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Reserved cell 1")
	out, err = executeCLI(t, "index", "--db", db, "--caller", "carol", "--now", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Cell 1 at")
}

func TestNeighborsCommand(t *testing.T) {
	db := newActiveTestDB(t)
	_, err := executeCLI(t, "reserve", "--db", db, "--caller", "alice", "--now", "100")
	require.NoError(t, err)

	out, err := executeCLI(t, "neighbors", "--db", db, "--caller", "alice", "--now", "100", "--format", "json")
	require.NoError(t, err)

	var res engine.Result
	decodeResponse(t, out, &res)
	require.NotNil(t, res.Neighbors)
	assert.Equal(t, 1, res.Index)
	for _, tile := range res.Neighbors {
		assert.Len(t, tile, 4)
	}

	out, err = executeCLI(t, "neighbors", "--db", db, "--caller", "alice", "--now", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Neighbors of cell 1")
	assert.Contains(t, out, "top")
	assert.Contains(t, out, "left")
}

func TestCallerFromEnvironment(t *testing.T) {
	db := newActiveTestDB(t)
	t.Setenv("MOSAIC_CALLER", "dave")

	out, err := executeCLI(t, "reserve", "--db", db, "--now", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Reserved cell 1")
}

func TestResultViewStatusText(t *testing.T) {
	view := ResultView{
		Op: engine.OpStatus,
		Status: &board.Status{
			State:     board.StateIdle,
			Watermark: 1,
			WindowLo:  1,
			WindowHi:  5,
			Ring:      1,
			TileSize:  4,
			TTL:       10,
		},
	}
	text := view.String()
	assert.Contains(t, text, "State:     idle")
	assert.Contains(t, text, "Window:    [1, 5)")
	assert.Contains(t, text, "Tile size: 4, TTL: 10")
}
