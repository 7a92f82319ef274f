package engine

import "time"

// TimeSource supplies now for lease decisions, in whole time units.
// The board itself has no clock.
type TimeSource interface {
	Now() int64
}

// WallTime reports Unix seconds. Lease TTLs are therefore seconds in
// production.
type WallTime struct{}

// Now returns the current Unix time in seconds.
func (WallTime) Now() int64 {
	return time.Now().Unix()
}

// FixedTime always reports the same instant. The CLI uses it for --now.
type FixedTime int64

// Now returns t.
func (t FixedTime) Now() int64 {
	return int64(t)
}
