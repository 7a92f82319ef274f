package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
)

// ErrNotInitialized is returned by Load when no board has been stored.
var ErrNotInitialized = errors.New("store: board not initialized")

// ErrAlreadyInitialized is returned by Init when a board already exists.
var ErrAlreadyInitialized = errors.New("store: board already initialized")

// Loaded is a board read back from the store.
type Loaded struct {
	// ID is the board identity assigned at Init.
	ID string

	// Snapshot is the persisted board state.
	Snapshot board.Snapshot

	// LastSeq is the seq of the last committed journal entry, 0 if none.
	LastSeq int64

	// LastNow is the time of the last committed journal entry, 0 if none.
	LastNow int64
}

// Init stores a new board. It fails with ErrAlreadyInitialized if the
// database already holds one.
func (s *Store) Init(ctx context.Context, id string, snap board.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init board: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM board`).Scan(&exists); err != nil {
		return fmt.Errorf("init board: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyInitialized
	}

	cfg := snap.Config
	_, err = tx.ExecContext(ctx, `
		INSERT INTO board (singleton, id, state, watermark, ttl, tile_size, center, last_seq)
		VALUES (1, ?, ?, ?, ?, ?, ?, 0)
	`, id, string(snap.State), snap.Watermark, cfg.TTL, cfg.TileSize, []byte(cfg.Center))
	if err != nil {
		return fmt.Errorf("init board: %w", err)
	}

	for _, ic := range snap.Cells {
		if err := upsertCell(ctx, tx, ic); err != nil {
			return fmt.Errorf("init board: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init board: commit: %w", err)
	}
	return nil
}

// Load reads the stored board. Cells are returned in ascending index order.
func (s *Store) Load(ctx context.Context) (*Loaded, error) {
	var (
		out      Loaded
		state    string
		center   []byte
		tileSize int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, state, watermark, ttl, tile_size, center, last_seq
		FROM board WHERE singleton = 1
	`).Scan(&out.ID, &state, &out.Snapshot.Watermark, &out.Snapshot.Config.TTL,
		&tileSize, &center, &out.LastSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	out.Snapshot.State = board.State(state)
	out.Snapshot.Config.TileSize = tileSize
	out.Snapshot.Config.Center = ir.Tile(center)

	err = s.db.QueryRowContext(ctx, `
		SELECT now FROM journal ORDER BY seq DESC LIMIT 1
	`).Scan(&out.LastNow)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load board: last now: %w", err)
	}

	cells, err := s.readCells(ctx)
	if err != nil {
		return nil, err
	}
	out.Snapshot.Cells = cells
	return &out, nil
}

// BoardID returns the stored board's identity.
func (s *Store) BoardID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM board WHERE singleton = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotInitialized
	}
	if err != nil {
		return "", fmt.Errorf("board id: %w", err)
	}
	return id, nil
}

func (s *Store) readCells(ctx context.Context) ([]board.IndexedCell, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, tile, drawn, owner, lease_expiry
		FROM cells
		ORDER BY idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	var cells []board.IndexedCell
	for rows.Next() {
		var (
			ic     board.IndexedCell
			tile   []byte
			drawn  int
			owner  sql.NullString
			expiry sql.NullInt64
		)
		if err := rows.Scan(&ic.Index, &tile, &drawn, &owner, &expiry); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		if tile != nil {
			ic.Tile = ir.Tile(tile)
		}
		ic.Drawn = drawn == 1
		ic.Owner = ir.Caller(owner.String)
		ic.LeaseExpiry = expiry.Int64
		cells = append(cells, ic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return cells, nil
}

// upsertCell writes a cell row. A cell with no state deletes the row.
func upsertCell(ctx context.Context, tx *sql.Tx, ic board.IndexedCell) error {
	if ic.IsZero() {
		_, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE idx = ?`, ic.Index)
		if err != nil {
			return fmt.Errorf("delete cell %d: %w", ic.Index, err)
		}
		return nil
	}

	var (
		tile   any
		owner  any
		expiry any
	)
	if len(ic.Tile) > 0 {
		tile = []byte(ic.Tile)
	}
	if ic.Owner != "" {
		owner = string(ic.Owner)
		expiry = ic.LeaseExpiry
	}
	drawn := 0
	if ic.Drawn {
		drawn = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO cells (idx, tile, drawn, owner, lease_expiry)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(idx) DO UPDATE SET
			tile = excluded.tile,
			drawn = excluded.drawn,
			owner = excluded.owner,
			lease_expiry = excluded.lease_expiry
	`, ic.Index, tile, drawn, owner, expiry)
	if err != nil {
		return fmt.Errorf("write cell %d: %w", ic.Index, err)
	}
	return nil
}
