// Package board implements the slot-allocation core of the mosaic.
//
// A Board owns a cell store (Cells), an admission window anchored at the
// watermark (Window), a lease allocator (Allocator) and a draw committer
// (Committer), and gates them behind the idle/active/closed lifecycle.
//
// The board is a strictly sequential state machine. It has no clock: every
// time-dependent operation takes now from the caller, so the same input
// sequence always yields the same state. Lease expiry is evaluated lazily
// when a competing Reserve inspects a cell; nothing sweeps expired leases.
//
// Every rejected operation returns an *Error and leaves the board unchanged.
package board
