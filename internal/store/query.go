package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/mosaic/internal/ir"
)

// JournalFilter selects journal entries. Zero fields match everything;
// set fields combine with AND.
type JournalFilter struct {
	Op       string
	Caller   ir.Caller
	Outcome  string
	AfterSeq int64 // only entries with seq > AfterSeq
	Limit    int   // 0 for no limit
}

// compile converts f into a WHERE fragment and its parameters.
//
// Values are always bound as ? parameters, never interpolated.
func (f JournalFilter) compile() (string, []any) {
	var (
		preds  []string
		params []any
	)
	eq := func(column string, v any) {
		preds = append(preds, column+" = ?")
		params = append(params, v)
	}
	if f.Op != "" {
		eq("op", f.Op)
	}
	if f.Caller != "" {
		eq("caller", string(f.Caller))
	}
	if f.Outcome != "" {
		eq("outcome", f.Outcome)
	}
	if f.AfterSeq > 0 {
		preds = append(preds, "seq > ?")
		params = append(params, f.AfterSeq)
	}
	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), params
}

// journalQuery builds the SELECT for f. Every query is ordered by seq so
// results are deterministic.
func journalQuery(f JournalFilter) (string, []any) {
	where, params := f.compile()
	query := `SELECT seq, id, op, caller, tile, now, outcome, idx FROM journal` +
		where + ` ORDER BY seq ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		params = append(params, f.Limit)
	}
	return query, params
}

// QueryJournal returns the journal entries matching f in seq order.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryJournal(ctx context.Context, f JournalFilter) ([]JournalEntry, error) {
	query, params := journalQuery(f)
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var (
			e      JournalEntry
			caller string
			tile   []byte
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Op, &caller, &tile, &e.Now, &e.Outcome, &e.Index); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Caller = ir.Caller(caller)
		if tile != nil {
			e.Tile = ir.Tile(tile)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}
