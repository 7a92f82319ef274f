package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

// ReplayReport summarizes a replay run.
type ReplayReport struct {
	BoardID string `json:"board_id"`

	// Entries is the number of journal entries re-applied.
	Entries int `json:"entries"`

	// Accepted and Rejected count entry outcomes.
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`

	// Digest is the state digest of the rebuilt board; StoredDigest is the
	// digest of the board as stored.
	Digest       string `json:"digest"`
	StoredDigest string `json:"stored_digest"`
}

// Matches reports whether the rebuilt board equals the stored one.
func (r *ReplayReport) Matches() bool {
	return r.Digest == r.StoredDigest
}

// Replay rebuilds the board from genesis by re-applying every journal
// entry, and checks that each entry reproduces its journaled id, outcome and
// index and that the final state equals the stored state.
//
// Replay never writes to the store. On the first mismatch it returns the
// report so far and a REPLAY_DIVERGED RuntimeError.
func Replay(ctx context.Context, s *store.Store) (*ReplayReport, error) {
	loaded, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	stored, err := board.Restore(loaded.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("replay: restore stored board: %w", err)
	}
	entries, err := s.ReadJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report := &ReplayReport{BoardID: loaded.ID}
	if report.StoredDigest, err = stored.Digest(); err != nil {
		return nil, fmt.Errorf("replay: stored digest: %w", err)
	}

	genesis := loaded.Snapshot.Config
	b, err := board.New(genesis)
	if err != nil {
		return nil, fmt.Errorf("replay: genesis board: %w", err)
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if entry.Seq != int64(i+1) {
			return report, NewReplayDivergedError(entry.Seq, "journal gap: expected seq %d", i+1)
		}

		cmd := Command{Op: Op(entry.Op), Caller: entry.Caller, Tile: entry.Tile}
		id, err := ir.CommandID(loaded.ID, entry.Op, entry.Caller, entry.Tile, entry.Now, entry.Seq)
		if err != nil {
			return report, fmt.Errorf("replay seq %d: %w", entry.Seq, err)
		}
		if id != entry.ID {
			return report, NewReplayDivergedError(entry.Seq, "command id %s, journal has %s", id, entry.ID)
		}

		res, opErr := execute(b, cmd, entry.Now)
		if IsUnknownOp(opErr) {
			return report, NewReplayDivergedError(entry.Seq, "journal names unknown op %q", entry.Op)
		}
		got := Outcome(opErr)
		if got != entry.Outcome {
			return report, NewReplayDivergedError(entry.Seq, "outcome %s, journal has %s", got, entry.Outcome)
		}
		gotIndex := res.Index
		if opErr != nil {
			gotIndex = -1
		}
		if gotIndex != entry.Index {
			return report, NewReplayDivergedError(entry.Seq, "index %d, journal has %d", gotIndex, entry.Index)
		}

		report.Entries++
		if opErr != nil {
			report.Rejected++
		} else {
			report.Accepted++
		}
	}

	if report.Digest, err = b.Digest(); err != nil {
		return report, fmt.Errorf("replay: digest: %w", err)
	}
	if !report.Matches() {
		return report, NewReplayDivergedError(loaded.LastSeq,
			"rebuilt state %s, stored state %s", report.Digest, report.StoredDigest)
	}

	slog.Debug("replay verified",
		"board", report.BoardID,
		"entries", report.Entries,
		"digest", report.Digest,
	)
	return report, nil
}
