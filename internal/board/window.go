package board

import (
	"fmt"

	"github.com/roach88/mosaic/internal/diamond"
)

// Window is the admission window: the contiguous index range open for new
// leases. It is anchored at the watermark, the smallest undrawn index, and
// spans one ring's worth of cells.
type Window struct {
	cells     *Cells
	watermark int
}

// NewWindow creates a window over cells with the watermark at the first
// undrawn index at or after 1.
func NewWindow(cells *Cells) *Window {
	w := &Window{cells: cells, watermark: 1}
	w.Advance()
	return w
}

// Watermark returns the smallest undrawn index.
func (w *Window) Watermark() int {
	return w.watermark
}

// EligibleRange returns [lo, hi): lo is the watermark and hi-lo is the size
// of the ring the watermark sits in.
func (w *Window) EligibleRange() (lo, hi int) {
	lo = w.watermark
	k, err := diamond.RingOf(lo)
	if err != nil {
		// The watermark is always >= 1 and advances one cell per draw.
		panic(fmt.Sprintf("board: watermark %d has no ring: %v", lo, err))
	}
	return lo, lo + diamond.RingSize(k)
}

// Contains reports whether index lies inside the eligible range.
func (w *Window) Contains(index int) bool {
	lo, hi := w.EligibleRange()
	return index >= lo && index < hi
}

// Ring returns the ring the watermark sits in.
func (w *Window) Ring() int {
	k, _ := diamond.RingOf(w.watermark)
	return k
}

// Advance moves the watermark forward over consecutive drawn cells. It never
// moves past an undrawn cell.
func (w *Window) Advance() {
	for w.cells.Get(w.watermark).Drawn {
		w.watermark++
	}
}
