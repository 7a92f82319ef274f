package testutil

import "sync"

// ManualTime is a time source tests move by hand.
//
// It satisfies engine.TimeSource. Time only moves when the test calls Set
// or Advance, so lease expiry in a test happens exactly where the test says.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualTime struct {
	mu  sync.Mutex
	now int64
}

// NewManualTime creates a time source reading start.
func NewManualTime(start int64) *ManualTime {
	return &ManualTime{now: start}
}

// Now returns the current reading.
func (m *ManualTime) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves time forward by d and returns the new reading.
// Negative d is ignored: time never runs backwards.
func (m *ManualTime) Advance(d int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now += d
	}
	return m.now
}

// Set moves time to t if t is not earlier than the current reading.
func (m *ManualTime) Set(t int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t > m.now {
		m.now = t
	}
}
