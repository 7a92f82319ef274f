package board

import (
	"github.com/roach88/mosaic/internal/ir"
)

// DefaultTTL is the lease lifetime in time units.
const DefaultTTL int64 = 1800

// Allocator grants and refreshes leases inside the admission window.
// It keeps no state of its own; every decision reads the cell store.
type Allocator struct {
	cells  *Cells
	window *Window
	ttl    int64
}

// NewAllocator creates an allocator over cells and window.
func NewAllocator(cells *Cells, window *Window, ttl int64) *Allocator {
	return &Allocator{cells: cells, window: window, ttl: ttl}
}

// Reserve gives caller a lease and returns its index.
//
// A caller that already holds a lease in the window keeps it and has its
// expiry pushed to now+TTL. Otherwise the lowest eligible index that is
// undrawn and either unleased or strictly expired is taken, overwriting any
// expired owner. When no such cell exists Reserve fails with
// CapacityExceeded and changes nothing.
func (a *Allocator) Reserve(caller ir.Caller, now int64) (int, error) {
	if idx, ok := a.LeaseIndexOf(caller); ok {
		a.cells.lease(idx, caller, now+a.ttl)
		return idx, nil
	}

	lo, hi := a.window.EligibleRange()
	for idx := lo; idx < hi; idx++ {
		c := a.cells.Get(idx)
		if c.Drawn {
			continue
		}
		if c.Leased() && !c.Expired(now) {
			continue
		}
		a.cells.lease(idx, caller, now+a.ttl)
		return idx, nil
	}
	return 0, newError(CodeCapacityExceeded, -1,
		"no free cell in window [%d,%d)", lo, hi)
}

// LeaseIndexOf returns the index caller holds a lease on inside the window.
// Expired leases still count until another caller reclaims them.
func (a *Allocator) LeaseIndexOf(caller ir.Caller) (int, bool) {
	idx, ok := a.cells.OwnedBy(caller)
	if !ok || !a.window.Contains(idx) {
		return 0, false
	}
	return idx, true
}
