package engine

import "sync/atomic"

// Clock hands out journal sequence numbers.
//
// Every mutating command is stamped with the next seq. Seq is logical time:
// it orders the journal and feeds command ids, and never depends on the
// wall clock, so replay sees exactly the same order.
//
// Clock is safe for concurrent use, although only the engine's writer
// goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, so the first Next returns
// start+1. Used when resuming from a stored journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out, or the start position.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Reset repositions the clock after the engine reloads from the store.
func (c *Clock) Reset(seq int64) {
	c.seq.Store(seq)
}
