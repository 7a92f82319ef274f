package diamond

import (
	"errors"
	"fmt"
	"math"
)

// MaxRing bounds the rings this package will address. Ring starts grow
// quadratically, so MaxRing keeps 1+2k(k+1) well inside int64.
const MaxRing = 1 << 30

// ErrOutOfRange is returned for negative indices and for coordinates whose
// ring exceeds MaxRing.
var ErrOutOfRange = errors.New("diamond: out of range")

// Coordinate is a cell position on the grid.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Origin is the coordinate of the pre-seeded center cell.
var Origin = Coordinate{}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Manhattan returns |x|+|y|, which is the ring the coordinate belongs to.
func (c Coordinate) Manhattan() int {
	return abs(c.X) + abs(c.Y)
}

// Neighbors holds the indices of the four axis-aligned neighbors of a cell.
type Neighbors struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Slice returns the neighbors in top, right, bottom, left order.
func (n Neighbors) Slice() [4]int {
	return [4]int{n.Top, n.Right, n.Bottom, n.Left}
}

// clockwise unit steps per edge, starting from the north vertex.
var edgeSteps = [4]Coordinate{
	{X: 1, Y: -1},
	{X: -1, Y: -1},
	{X: -1, Y: 1},
	{X: 1, Y: 1},
}

// RingSize returns the number of cells in ring k (4k).
func RingSize(k int) int {
	return 4 * k
}

// RingStart returns the first linear index of ring k (1+2k(k-1)).
func RingStart(k int) int {
	return 1 + 2*k*(k-1)
}

// RingOf returns the ring that contains index.
//
// Index 0 is the pre-seeded center and belongs to no ring; RingOf(0) returns
// 0 with a nil error. Negative indices return ErrOutOfRange.
func RingOf(index int) (int, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: index %d", ErrOutOfRange, index)
	}
	if index == 0 {
		return 0, nil
	}

	// Closed-form estimate from 2k^2 - 2k + 1 <= index, then correct for
	// floating point error at block boundaries.
	k := int((1 + math.Sqrt(float64(2*index-1))) / 2)
	if k < 1 {
		k = 1
	}
	for k > 1 && RingStart(k) > index {
		k--
	}
	for RingStart(k+1) <= index {
		k++
	}
	if k > MaxRing {
		return 0, fmt.Errorf("%w: index %d", ErrOutOfRange, index)
	}
	return k, nil
}

// CoordinateOf returns the grid position of index.
func CoordinateOf(index int) (Coordinate, error) {
	if index == 0 {
		return Origin, nil
	}
	k, err := RingOf(index)
	if err != nil {
		return Coordinate{}, err
	}

	offset := index - RingStart(k)
	edge := offset / k
	steps := offset % k

	var start Coordinate
	switch edge {
	case 0:
		start = Coordinate{X: 0, Y: k}
	case 1:
		start = Coordinate{X: k, Y: 0}
	case 2:
		start = Coordinate{X: 0, Y: -k}
	default:
		start = Coordinate{X: -k, Y: 0}
	}
	step := edgeSteps[edge]
	return Coordinate{
		X: start.X + step.X*steps,
		Y: start.Y + step.Y*steps,
	}, nil
}

// IndexOf returns the linear index at coordinate c. It is the inverse of
// CoordinateOf; IndexOf(Origin) is 0.
func IndexOf(c Coordinate) (int, error) {
	k := c.Manhattan()
	if k == 0 {
		return 0, nil
	}
	if k > MaxRing || k < 0 {
		return 0, fmt.Errorf("%w: coordinate %s", ErrOutOfRange, c)
	}

	var offset int
	switch {
	case c.X >= 0 && c.Y > 0:
		offset = c.X
	case c.X > 0 && c.Y <= 0:
		offset = k - c.Y
	case c.X <= 0 && c.Y < 0:
		offset = 2*k - c.X
	default: // c.X < 0 && c.Y >= 0
		offset = 3*k + c.Y
	}
	return RingStart(k) + offset, nil
}

// NeighborsOf returns the indices above, right of, below and left of index.
//
// Every coordinate resolves to an index, so a failure here means the indexer
// itself is broken or the index is out of range. The error is returned
// rather than defaulted so such bugs surface at the call site.
func NeighborsOf(index int) (Neighbors, error) {
	c, err := CoordinateOf(index)
	if err != nil {
		return Neighbors{}, err
	}

	var n Neighbors
	targets := []struct {
		dst *int
		at  Coordinate
		dir string
	}{
		{&n.Top, Coordinate{X: c.X, Y: c.Y + 1}, "top"},
		{&n.Right, Coordinate{X: c.X + 1, Y: c.Y}, "right"},
		{&n.Bottom, Coordinate{X: c.X, Y: c.Y - 1}, "bottom"},
		{&n.Left, Coordinate{X: c.X - 1, Y: c.Y}, "left"},
	}
	for _, t := range targets {
		idx, err := IndexOf(t.at)
		if err != nil {
			return Neighbors{}, fmt.Errorf("neighbor %s of %d at %s: %w", t.dir, index, t.at, err)
		}
		*t.dst = idx
	}
	return n, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
