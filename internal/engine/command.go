package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/diamond"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

// Op names a board operation.
type Op string

const (
	OpStart     Op = "start"
	OpFinish    Op = "finish"
	OpReserve   Op = "reserve"
	OpDraw      Op = "draw"
	OpIndex     Op = "index"
	OpNeighbors Op = "neighbors"
	OpStatus    Op = "status"
)

// Ops lists every operation in a stable order.
var Ops = []Op{OpStart, OpFinish, OpReserve, OpDraw, OpIndex, OpNeighbors, OpStatus}

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	for _, known := range Ops {
		if o == known {
			return true
		}
	}
	return false
}

// Mutating reports whether o may change board state. Mutating commands are
// journaled whether or not they succeed; queries are not.
func (o Op) Mutating() bool {
	switch o {
	case OpStart, OpFinish, OpReserve, OpDraw:
		return true
	}
	return false
}

// Command is one request against the board. Caller must already be
// normalized (see ir.NormalizeCaller). Tile is used only by draw.
type Command struct {
	Op     Op        `json:"op" yaml:"op"`
	Caller ir.Caller `json:"caller,omitempty" yaml:"caller,omitempty"`
	Tile   ir.Tile   `json:"tile,omitempty" yaml:"tile,omitempty"`
}

// Result is the outcome of an accepted command.
type Result struct {
	Op Op `json:"op"`

	// Seq and ID identify the journal entry. Zero for queries.
	Seq int64  `json:"seq,omitempty"`
	ID  string `json:"id,omitempty"`

	// Now is the time the command was evaluated at.
	Now int64 `json:"now"`

	// Index is the cell reserved, drawn or leased; 0 when not applicable.
	Index int `json:"index"`

	// Coordinate is the grid position of Index.
	Coordinate diamond.Coordinate `json:"coordinate"`

	// Neighbors is set by the neighbors query, in top, right, bottom, left
	// order.
	Neighbors *[4]ir.Tile `json:"neighbors,omitempty"`

	// Status is set by the status query.
	Status *board.Status `json:"status,omitempty"`
}

// execute runs cmd against b at now. It is the only place board operations
// are dispatched, shared by live execution and replay.
func execute(b *board.Board, cmd Command, now int64) (Result, error) {
	res := Result{Op: cmd.Op, Now: now}
	var err error

	switch cmd.Op {
	case OpStart:
		err = b.Start()
	case OpFinish:
		err = b.Finish()
	case OpReserve:
		res.Index, err = b.Reserve(cmd.Caller, now)
	case OpDraw:
		res.Index, err = b.Draw(cmd.Caller, cmd.Tile, now)
	case OpIndex:
		res.Index, err = b.MyIndex(cmd.Caller)
	case OpNeighbors:
		res.Index, err = b.MyIndex(cmd.Caller)
		if err == nil {
			var tiles [4]ir.Tile
			tiles, err = b.MyNeighbors(cmd.Caller)
			res.Neighbors = &tiles
		}
	case OpStatus:
		st := b.Status(now)
		res.Status = &st
	default:
		return res, NewUnknownOpError(cmd.Op)
	}
	if err != nil {
		return res, err
	}

	res.Coordinate, err = diamond.CoordinateOf(res.Index)
	if err != nil {
		return res, fmt.Errorf("coordinate of %d: %w", res.Index, err)
	}
	return res, nil
}

// touched returns the cells cmd may have changed, for persistence.
func touched(b *board.Board, cmd Command, res Result, opErr error) []board.IndexedCell {
	if opErr != nil {
		return nil
	}
	switch cmd.Op {
	case OpReserve, OpDraw:
		return []board.IndexedCell{{Index: res.Index, Cell: b.Cell(res.Index)}}
	}
	return nil
}

// Outcome returns the journal outcome for an operation error: OK, the board
// error code, the runtime error code, or ERROR.
func Outcome(opErr error) string {
	if opErr == nil {
		return store.OutcomeOK
	}
	if code := board.CodeOf(opErr); code != "" {
		return string(code)
	}
	var re *RuntimeError
	if errors.As(opErr, &re) {
		return string(re.Code)
	}
	return "ERROR"
}
