package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/store"
)

// TestBoardID is the board id used by NewBoardStore.
const TestBoardID = "board-00000000-0000-7000-8000-000000000001"

// NewBoardStore opens a store in a temporary directory and initializes it
// with a fresh idle board built from cfg. The store is closed when the test
// ends.
func NewBoardStore(t testing.TB, cfg board.Config) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "mosaic.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	b, err := board.New(cfg)
	if err != nil {
		t.Fatalf("new board: %v", err)
	}
	if err := s.Init(context.Background(), TestBoardID, b.Snapshot()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

// Tile returns a tile of the given size whose first value is v.
func Tile(size int, v uint8) []uint8 {
	tile := make([]uint8, size)
	if size > 0 {
		tile[0] = v
	}
	return tile
}
