package board

import (
	"fmt"

	"github.com/roach88/mosaic/internal/diamond"
	"github.com/roach88/mosaic/internal/ir"
)

// State is the board lifecycle state.
type State string

const (
	StateIdle   State = "idle"
	StateActive State = "active"
	StateClosed State = "closed"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateActive, StateClosed:
		return true
	}
	return false
}

// Config fixes the parameters of a board at construction.
type Config struct {
	// TTL is the lease lifetime in time units.
	TTL int64 `json:"ttl"`

	// TileSize is the number of values in every tile.
	TileSize int `json:"tile_size"`

	// Center is the content of the pre-drawn center cell.
	Center ir.Tile `json:"center"`
}

// DefaultConfig returns a config with TTL 1800, 16-value tiles and an empty
// center.
func DefaultConfig() Config {
	return Config{
		TTL:      DefaultTTL,
		TileSize: ir.DefaultTileSize,
		Center:   ir.EmptyTile(ir.DefaultTileSize),
	}
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %d", c.TTL)
	}
	if c.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", c.TileSize)
	}
	if len(c.Center) != c.TileSize {
		return fmt.Errorf("center tile has %d values, want %d", len(c.Center), c.TileSize)
	}
	return nil
}

// Board is the lifecycle gate over the cell store, admission window, lease
// allocator and draw committer.
//
// Board is not safe for concurrent use. Callers serialize access; the engine
// package does so with a single writer goroutine.
type Board struct {
	cfg       Config
	state     State
	cells     *Cells
	window    *Window
	allocator *Allocator
	committer *Committer
}

// New creates an idle board with the center cell seeded from cfg.
func New(cfg Config) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("board config: %w", err)
	}
	cfg.Center = cfg.Center.Clone()
	cells := NewCells(cfg.TileSize, cfg.Center)
	window := NewWindow(cells)
	return &Board{
		cfg:       cfg,
		state:     StateIdle,
		cells:     cells,
		window:    window,
		allocator: NewAllocator(cells, window, cfg.TTL),
		committer: NewCommitter(cells, window),
	}, nil
}

// Config returns the board's construction parameters.
func (b *Board) Config() Config {
	cfg := b.cfg
	cfg.Center = cfg.Center.Clone()
	return cfg
}

// State returns the lifecycle state.
func (b *Board) State() State {
	return b.state
}

// Start opens the board for reservations.
func (b *Board) Start() error {
	switch b.state {
	case StateActive:
		return newError(CodeAlreadyStarted, -1, "board is already active")
	case StateClosed:
		return newError(CodeAlreadyFinished, -1, "board is closed")
	}
	b.state = StateActive
	return nil
}

// Finish closes an active board. Closed is terminal.
func (b *Board) Finish() error {
	if err := b.requireActive(); err != nil {
		return err
	}
	b.state = StateClosed
	return nil
}

// Reserve grants caller a lease and returns its index. See Allocator.Reserve.
func (b *Board) Reserve(caller ir.Caller, now int64) (int, error) {
	if err := b.requireActive(); err != nil {
		return 0, err
	}
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	return b.allocator.Reserve(caller, now)
}

// Draw writes tile into caller's leased cell. See Committer.Draw.
func (b *Board) Draw(caller ir.Caller, tile ir.Tile, now int64) (int, error) {
	if err := b.requireActive(); err != nil {
		return 0, err
	}
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	return b.committer.Draw(caller, tile, now)
}

// MyIndex returns the index caller holds a lease on, or 0 (the center) if
// caller holds none.
func (b *Board) MyIndex(caller ir.Caller) (int, error) {
	if err := b.requireActive(); err != nil {
		return 0, err
	}
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	idx, ok := b.allocator.LeaseIndexOf(caller)
	if !ok {
		return 0, nil
	}
	return idx, nil
}

// MyNeighbors returns the top, right, bottom and left tiles around caller's
// leased cell. Neighbors that are not drawn yet are the empty tile. A caller
// without a lease sees the neighbors of the center.
func (b *Board) MyNeighbors(caller ir.Caller) ([4]ir.Tile, error) {
	var out [4]ir.Tile
	idx, err := b.MyIndex(caller)
	if err != nil {
		return out, err
	}
	n, err := diamond.NeighborsOf(idx)
	if err != nil {
		return out, fmt.Errorf("neighbors of %d: %w", idx, err)
	}
	for i, nIdx := range n.Slice() {
		out[i] = b.cells.TileOf(nIdx)
	}
	return out, nil
}

// Cell returns the cell at index. Untouched cells are the zero Cell.
func (b *Board) Cell(index int) Cell {
	c := b.cells.Get(index)
	c.Tile = c.Tile.Clone()
	return c
}

// Watermark returns the smallest undrawn index.
func (b *Board) Watermark() int {
	return b.window.Watermark()
}

// EligibleRange returns the admission window [lo, hi).
func (b *Board) EligibleRange() (lo, hi int) {
	return b.window.EligibleRange()
}

// Status summarizes the board. Unlike the caller queries it is available in
// every lifecycle state.
type Status struct {
	State         State `json:"state"`
	Watermark     int   `json:"watermark"`
	WindowLo      int   `json:"window_lo"`
	WindowHi      int   `json:"window_hi"`
	Ring          int   `json:"ring"`
	Leases        int   `json:"leases"`
	ExpiredLeases int   `json:"expired_leases"`
	Drawn         int   `json:"drawn"`
	TileSize      int   `json:"tile_size"`
	TTL           int64 `json:"ttl"`
}

// Status returns a summary of the board as seen at now.
func (b *Board) Status(now int64) Status {
	lo, hi := b.window.EligibleRange()
	st := Status{
		State:     b.state,
		Watermark: b.window.Watermark(),
		WindowLo:  lo,
		WindowHi:  hi,
		Ring:      b.window.Ring(),
		Leases:    b.cells.Leases(),
		TileSize:  b.cfg.TileSize,
		TTL:       b.cfg.TTL,
	}
	b.cells.Each(func(index int, c Cell) {
		if index == 0 {
			return
		}
		if c.Drawn {
			st.Drawn++
		}
		if c.Expired(now) {
			st.ExpiredLeases++
		}
	})
	return st
}

func (b *Board) requireActive() error {
	if b.state != StateActive {
		return newError(CodeNotStarted, -1, "board is %s", b.state)
	}
	return nil
}

func requireCaller(caller ir.Caller) error {
	if caller == "" {
		return newError(CodeInvalidCaller, -1, "caller identity is empty")
	}
	return nil
}
