package board

import (
	"github.com/roach88/mosaic/internal/ir"
)

// Committer writes tiles into leased cells.
type Committer struct {
	cells  *Cells
	window *Window
}

// NewCommitter creates a committer over cells and window.
func NewCommitter(cells *Cells, window *Window) *Committer {
	return &Committer{cells: cells, window: window}
}

// Draw writes tile into the cell caller has leased and returns its index.
//
// Checks run in order: the caller must own a cell (NotReserved), the tile
// must have the board's length (InvalidTile) and must not be all zero
// (EmptyTile). Nothing is written unless every check passes. A successful
// draw consumes the lease and advances the watermark. Lease expiry does not
// revoke the holder's right to draw, so now is not consulted.
func (c *Committer) Draw(caller ir.Caller, tile ir.Tile, now int64) (int, error) {
	idx, ok := c.cells.OwnedBy(caller)
	if !ok {
		return 0, newError(CodeNotReserved, -1, "caller %q holds no lease", caller)
	}
	if len(tile) != c.cells.TileSize() {
		return 0, newError(CodeInvalidTile, idx,
			"tile has %d values, want %d", len(tile), c.cells.TileSize())
	}
	if tile.IsEmpty() {
		return 0, newError(CodeEmptyTile, idx, "tile is all zero")
	}

	c.cells.draw(idx, tile)
	c.window.Advance()
	return idx, nil
}
