package board

import (
	"fmt"
	"strconv"

	"github.com/roach88/mosaic/internal/ir"
)

// IndexedCell pairs a cell with its index.
type IndexedCell struct {
	Index int `json:"index"`
	Cell
}

// Snapshot is the persisted form of a board: its config, lifecycle state,
// watermark and every cell that carries state.
type Snapshot struct {
	Config    Config        `json:"config"`
	State     State         `json:"state"`
	Watermark int           `json:"watermark"`
	Cells     []IndexedCell `json:"cells"`
}

// Snapshot captures the board. Cells are in ascending index order.
func (b *Board) Snapshot() Snapshot {
	snap := Snapshot{
		Config:    b.Config(),
		State:     b.state,
		Watermark: b.window.Watermark(),
	}
	b.cells.Each(func(index int, c Cell) {
		c.Tile = c.Tile.Clone()
		snap.Cells = append(snap.Cells, IndexedCell{Index: index, Cell: c})
	})
	return snap
}

// Restore rebuilds a board from a snapshot, checking the cell invariants and
// that the stored watermark matches the cells.
func Restore(snap Snapshot) (*Board, error) {
	b, err := New(snap.Config)
	if err != nil {
		return nil, err
	}
	if !snap.State.Valid() {
		return nil, fmt.Errorf("restore: unknown state %q", snap.State)
	}
	b.state = snap.State

	for _, ic := range snap.Cells {
		if err := checkCell(ic, snap.Config.TileSize); err != nil {
			return nil, fmt.Errorf("restore: %w", err)
		}
		if ic.Owner != "" {
			if prev, ok := b.cells.OwnedBy(ic.Owner); ok && prev != ic.Index {
				return nil, fmt.Errorf("restore: caller %q leases both %d and %d", ic.Owner, prev, ic.Index)
			}
		}
		c := ic.Cell
		c.Tile = c.Tile.Clone()
		b.cells.put(ic.Index, c)
	}

	b.window.Advance()
	if b.window.Watermark() != snap.Watermark {
		return nil, fmt.Errorf("restore: stored watermark %d, cells imply %d",
			snap.Watermark, b.window.Watermark())
	}
	return b, nil
}

func checkCell(ic IndexedCell, tileSize int) error {
	switch {
	case ic.Index < 0:
		return fmt.Errorf("cell %d: negative index", ic.Index)
	case ic.Index == 0:
		if !ic.Drawn || ic.Owner != "" {
			return fmt.Errorf("cell 0: center must be drawn and unowned")
		}
	case ic.Drawn && ic.Owner != "":
		return fmt.Errorf("cell %d: drawn cell has owner %q", ic.Index, ic.Owner)
	case ic.Drawn && len(ic.Tile) != tileSize:
		return fmt.Errorf("cell %d: tile has %d values, want %d", ic.Index, len(ic.Tile), tileSize)
	}
	return nil
}

// Canonical returns the board as a canonical-JSON-ready map. Two boards with
// identical state produce identical maps regardless of how their cell
// storage grew.
func (b *Board) Canonical() map[string]any {
	cells := map[string]any{}
	b.cells.Each(func(index int, c Cell) {
		entry := map[string]any{"drawn": c.Drawn}
		if c.Drawn {
			entry["tile"] = c.Tile
		}
		if c.Owner != "" {
			entry["owner"] = c.Owner
			entry["lease_expiry"] = c.LeaseExpiry
		}
		cells[strconv.Itoa(index)] = entry
	})
	return map[string]any{
		"state":     string(b.state),
		"watermark": b.window.Watermark(),
		"ttl":       b.cfg.TTL,
		"tile_size": b.cfg.TileSize,
		"cells":     cells,
	}
}

// Digest returns the content hash of the board state.
func (b *Board) Digest() (string, error) {
	return ir.StateDigest(b.Canonical())
}
