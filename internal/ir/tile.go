package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultTileSize is the number of values in a tile unless a board
// definition says otherwise.
const DefaultTileSize = 16

// Tile is the content drawn into one cell: a fixed-length sequence of
// pixel/intensity values. The all-zero tile is the empty tile.
//
// Tile marshals to JSON as an array of numbers rather than base64.
type Tile []uint8

// EmptyTile returns an all-zero tile of the given size.
func EmptyTile(size int) Tile {
	return make(Tile, size)
}

// IsEmpty reports whether every value is zero. A nil tile is empty.
func (t Tile) IsEmpty() bool {
	for _, v := range t {
		if v != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether t and other hold the same values.
func (t Tile) Equal(other Tile) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no memory with t.
func (t Tile) Clone() Tile {
	if t == nil {
		return nil
	}
	out := make(Tile, len(t))
	copy(out, t)
	return out
}

// String renders the tile as comma-separated values, the same form
// ParseTile accepts.
func (t Tile) String() string {
	var sb strings.Builder
	for i, v := range t {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	return sb.String()
}

// ParseTile parses comma-separated values in the range 0..255.
func ParseTile(s string) (Tile, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tile{}, nil
	}
	parts := strings.Split(s, ",")
	out := make(Tile, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("tile value %d (%q): must be an integer in 0..255", i, p)
		}
		out[i] = uint8(v)
	}
	return out, nil
}

// Values returns the tile as ints, the form used in canonical JSON.
func (t Tile) Values() []any {
	out := make([]any, len(t))
	for i, v := range t {
		out[i] = int64(v)
	}
	return out
}

// MarshalJSON encodes the tile as a JSON array of numbers.
func (t Tile) MarshalJSON() ([]byte, error) {
	vals := make([]int, len(t))
	for i, v := range t {
		vals[i] = int(v)
	}
	return json.Marshal(vals)
}

// UnmarshalJSON decodes a JSON array of numbers in 0..255.
func (t *Tile) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("tile: %w", err)
	}
	out := make(Tile, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 {
			return fmt.Errorf("tile value %d: %d out of range 0..255", i, v)
		}
		out[i] = uint8(v)
	}
	*t = out
	return nil
}
