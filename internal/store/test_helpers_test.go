package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createInitializedStore creates a store holding a fresh idle board.
func createInitializedStore(t *testing.T) (*Store, *board.Board) {
	t.Helper()
	s := createTestStore(t)
	b, err := board.New(board.DefaultConfig())
	if err != nil {
		t.Fatalf("board.New() failed: %v", err)
	}
	if err := s.Init(context.Background(), "board-test", b.Snapshot()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return s, b
}

// testEntry creates a journal entry with minimal required fields.
func testEntry(seq int64, op string, caller ir.Caller) JournalEntry {
	return JournalEntry{
		Seq:     seq,
		ID:      ir.MustCommandID("board-test", op, caller, nil, seq*10, seq),
		Op:      op,
		Caller:  caller,
		Now:     seq * 10,
		Outcome: OutcomeOK,
		Index:   -1,
	}
}
