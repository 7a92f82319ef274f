package board

import (
	"github.com/roach88/mosaic/internal/diamond"
	"github.com/roach88/mosaic/internal/ir"
)

// Cell is one slot of the mosaic.
//
// Invariant: Drawn implies Owner == "". LeaseExpiry is meaningful only while
// Owner is set.
type Cell struct {
	Tile        ir.Tile   `json:"tile,omitempty"`
	Drawn       bool      `json:"drawn"`
	Owner       ir.Caller `json:"owner,omitempty"`
	LeaseExpiry int64     `json:"lease_expiry,omitempty"`
}

// Leased reports whether some caller holds a lease on the cell.
func (c Cell) Leased() bool {
	return c.Owner != ""
}

// Expired reports whether the cell's lease may be reclaimed at now.
// A lease expiring exactly at now is still live.
func (c Cell) Expired(now int64) bool {
	return c.Leased() && c.LeaseExpiry < now
}

// IsZero reports whether the cell carries no state at all.
func (c Cell) IsZero() bool {
	return !c.Drawn && !c.Leased() && len(c.Tile) == 0
}

// Cells is the cell store: the only owner of Cell records. Indices beyond the
// stored length are untouched cells. The store keeps an owner index so the
// lease held by a caller can be found without a scan.
type Cells struct {
	cells    []Cell
	owners   map[ir.Caller]int
	tileSize int
}

// NewCells creates a store whose center cell holds center, pre-drawn.
func NewCells(tileSize int, center ir.Tile) *Cells {
	s := &Cells{
		cells:    make([]Cell, 1, 1+diamond.RingSize(1)),
		owners:   make(map[ir.Caller]int),
		tileSize: tileSize,
	}
	s.cells[0] = Cell{Tile: center.Clone(), Drawn: true}
	return s
}

// Len returns the number of materialized cells.
func (s *Cells) Len() int {
	return len(s.cells)
}

// TileSize returns the fixed tile length of the board.
func (s *Cells) TileSize() int {
	return s.tileSize
}

// Get returns the cell at index. Untouched cells are the zero Cell.
// The returned Tile must not be modified.
func (s *Cells) Get(index int) Cell {
	if index < 0 || index >= len(s.cells) {
		return Cell{}
	}
	return s.cells[index]
}

// TileOf returns a copy of the tile at index, or the empty tile if the cell
// has not been drawn.
func (s *Cells) TileOf(index int) ir.Tile {
	c := s.Get(index)
	if !c.Drawn || len(c.Tile) == 0 {
		return ir.EmptyTile(s.tileSize)
	}
	return c.Tile.Clone()
}

// OwnedBy returns the index leased by caller.
func (s *Cells) OwnedBy(caller ir.Caller) (int, bool) {
	idx, ok := s.owners[caller]
	return idx, ok
}

// Leases returns the number of cells currently leased.
func (s *Cells) Leases() int {
	return len(s.owners)
}

// lease sets caller as the owner of index, replacing any previous owner.
func (s *Cells) lease(index int, caller ir.Caller, expiry int64) {
	c := s.at(index)
	if c.Owner != "" && c.Owner != caller {
		delete(s.owners, c.Owner)
	}
	c.Owner = caller
	c.LeaseExpiry = expiry
	s.owners[caller] = index
}

// release clears the lease on index, if any.
func (s *Cells) release(index int) {
	c := s.at(index)
	if c.Owner != "" {
		delete(s.owners, c.Owner)
	}
	c.Owner = ""
	c.LeaseExpiry = 0
}

// draw writes tile into index and marks it drawn, consuming the lease.
func (s *Cells) draw(index int, tile ir.Tile) {
	s.release(index)
	c := s.at(index)
	c.Tile = tile.Clone()
	c.Drawn = true
}

// put installs a cell verbatim. Used when restoring persisted state.
func (s *Cells) put(index int, cell Cell) {
	c := s.at(index)
	if c.Owner != "" {
		delete(s.owners, c.Owner)
	}
	*c = cell
	if cell.Owner != "" {
		s.owners[cell.Owner] = index
	}
}

// at returns a pointer to the cell at index, materializing it if needed.
func (s *Cells) at(index int) *Cell {
	if index >= len(s.cells) {
		grown := make([]Cell, index+1, max(index+1, 2*len(s.cells)))
		copy(grown, s.cells)
		s.cells = grown
	}
	return &s.cells[index]
}

// Each calls fn for every materialized cell that carries state, in ascending
// index order.
func (s *Cells) Each(fn func(index int, c Cell)) {
	for i, c := range s.cells {
		if c.IsZero() {
			continue
		}
		fn(i, c)
	}
}
