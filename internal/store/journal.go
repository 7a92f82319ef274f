package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
)

// ErrSeqConflict is returned by Commit when the entry's seq does not follow
// the board's last committed seq, meaning another writer got there first.
var ErrSeqConflict = errors.New("store: journal seq conflict")

// OutcomeOK is the journal outcome of an accepted command. Rejected commands
// record their board.ErrorCode.
const OutcomeOK = "OK"

// JournalEntry is one mutating command and its outcome.
type JournalEntry struct {
	Seq     int64     `json:"seq"`
	ID      string    `json:"id"`
	Op      string    `json:"op"`
	Caller  ir.Caller `json:"caller,omitempty"`
	Tile    ir.Tile   `json:"tile,omitempty"`
	Now     int64     `json:"now"`
	Outcome string    `json:"outcome"`
	Index   int       `json:"index"`
}

// Change is everything one command changed: its journal entry, the board
// header after the command, and the cells it touched.
type Change struct {
	Entry     JournalEntry
	State     board.State
	Watermark int
	Cells     []board.IndexedCell
}

// Commit applies a change atomically.
//
// Commit is idempotent: if an entry with the same id was already committed
// nothing is written and nil is returned. An entry whose seq is not exactly
// last_seq+1 fails with ErrSeqConflict.
func (s *Store) Commit(ctx context.Context, ch Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit seq %d: begin: %w", ch.Entry.Seq, err)
	}
	defer tx.Rollback()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM journal WHERE seq = ?`, ch.Entry.Seq).Scan(&existingID)
	switch {
	case err == nil:
		if existingID == ch.Entry.ID {
			return nil
		}
		return fmt.Errorf("%w: seq %d already holds %s", ErrSeqConflict, ch.Entry.Seq, existingID)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("commit seq %d: %w", ch.Entry.Seq, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE board SET state = ?, watermark = ?, last_seq = ?
		WHERE singleton = 1 AND last_seq = ?
	`, string(ch.State), ch.Watermark, ch.Entry.Seq, ch.Entry.Seq-1)
	if err != nil {
		return fmt.Errorf("commit seq %d: update board: %w", ch.Entry.Seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit seq %d: %w", ch.Entry.Seq, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: seq %d does not follow the stored board", ErrSeqConflict, ch.Entry.Seq)
	}

	if err := insertEntry(ctx, tx, ch.Entry); err != nil {
		return fmt.Errorf("commit seq %d: %w", ch.Entry.Seq, err)
	}
	for _, ic := range ch.Cells {
		if err := upsertCell(ctx, tx, ic); err != nil {
			return fmt.Errorf("commit seq %d: %w", ch.Entry.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seq %d: %w", ch.Entry.Seq, err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, e JournalEntry) error {
	var tile any
	if e.Tile != nil {
		tile = []byte(e.Tile)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO journal (seq, id, op, caller, tile, now, outcome, idx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.Seq, e.ID, e.Op, string(e.Caller), tile, e.Now, e.Outcome, e.Index)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// ReadJournal returns every journal entry in seq order.
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadJournal(ctx context.Context) ([]JournalEntry, error) {
	return s.QueryJournal(ctx, JournalFilter{})
}
