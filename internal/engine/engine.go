package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

// Observer is notified after every applied command. The metrics package
// implements it.
type Observer interface {
	CommandApplied(op Op, outcome string, status board.Status)
}

// Engine is the single writer for one board.
//
// The engine owns the in-memory board and the store it persists to. Every
// mutating command is stamped with the next seq, given a content-addressed
// id, applied to the board and committed to the store with its outcome.
//
// CRITICAL: the board is touched by exactly one goroutine at a time.
// Either Run is active and all commands arrive through Submit, or no Run
// loop exists and the owner calls Apply directly (one-shot CLI use).
//
// Thread-safety model:
//   - Submit(): safe from any goroutine while Run is active
//   - Run(): must be called from exactly one goroutine
//   - Apply(): only when Run is not active
type Engine struct {
	store    *store.Store
	board    *board.Board
	boardID  string
	clock    *Clock
	time     TimeSource
	lastNow  int64
	queue    *requestQueue
	logger   *slog.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeSource sets where now comes from. Default: WallTime.
func WithTimeSource(ts TimeSource) Option {
	return func(e *Engine) {
		e.time = ts
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver registers an observer for applied commands.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// New creates an engine over an initialized store, loading the board and
// resuming the seq clock from the journal.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:  s,
		clock:  NewClock(),
		time:   WallTime{},
		queue:  newRequestQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// BoardID returns the identity of the board the engine serves.
func (e *Engine) BoardID() string {
	return e.boardID
}

// reload replaces the in-memory board with the stored one.
func (e *Engine) reload(ctx context.Context) error {
	loaded, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	b, err := board.Restore(loaded.Snapshot)
	if err != nil {
		return fmt.Errorf("restore board %s: %w", loaded.ID, err)
	}

	e.board = b
	e.boardID = loaded.ID
	e.clock.Reset(loaded.LastSeq)
	e.lastNow = loaded.LastNow
	return nil
}

// now returns the time source's reading, never earlier than the last
// journaled time, so time as seen by the board is non-decreasing.
func (e *Engine) now() int64 {
	n := e.time.Now()
	if n < e.lastNow {
		return e.lastNow
	}
	return n
}

// Apply runs one command synchronously.
//
// Board rejections are returned as *board.Error; for mutating commands they
// are journaled like successes. A store failure returns a persistence
// RuntimeError after reloading the board, so memory never runs ahead of
// disk.
func (e *Engine) Apply(ctx context.Context, cmd Command) (Result, error) {
	if !cmd.Op.Valid() {
		return Result{Op: cmd.Op}, NewUnknownOpError(cmd.Op)
	}
	if len(cmd.Tile) == 0 || cmd.Op != OpDraw {
		cmd.Tile = nil
	}
	now := e.now()

	if !cmd.Op.Mutating() {
		res, err := execute(e.board, cmd, now)
		e.observe(cmd.Op, err)
		return res, err
	}

	seq := e.clock.Next()
	id, err := ir.CommandID(e.boardID, string(cmd.Op), cmd.Caller, cmd.Tile, now, seq)
	if err != nil {
		e.clock.Reset(seq - 1)
		return Result{Op: cmd.Op}, fmt.Errorf("command id: %w", err)
	}

	res, opErr := execute(e.board, cmd, now)
	res.Seq, res.ID = seq, id

	change := store.Change{
		Entry: store.JournalEntry{
			Seq:     seq,
			ID:      id,
			Op:      string(cmd.Op),
			Caller:  cmd.Caller,
			Tile:    cmd.Tile,
			Now:     now,
			Outcome: Outcome(opErr),
			Index:   res.Index,
		},
		State:     e.board.State(),
		Watermark: e.board.Watermark(),
		Cells:     touched(e.board, cmd, res, opErr),
	}
	if opErr != nil {
		change.Entry.Index = -1
	}

	if err := e.store.Commit(ctx, change); err != nil {
		e.logger.Error("commit failed, reloading board",
			"op", cmd.Op,
			"caller", cmd.Caller,
			"seq", seq,
			"error", err,
		)
		if rerr := e.reload(ctx); rerr != nil {
			return Result{Op: cmd.Op}, NewPersistenceError(seq, fmt.Errorf("%w; reload: %v", err, rerr))
		}
		return Result{Op: cmd.Op}, NewPersistenceError(seq, err)
	}
	e.lastNow = now

	if opErr != nil {
		e.logger.Debug("command rejected",
			"op", cmd.Op,
			"caller", cmd.Caller,
			"seq", seq,
			"code", change.Entry.Outcome,
		)
	} else {
		e.logger.Info("command applied",
			"op", cmd.Op,
			"caller", cmd.Caller,
			"seq", seq,
			"index", res.Index,
			"watermark", change.Watermark,
		)
	}
	e.observe(cmd.Op, opErr)
	return res, opErr
}

func (e *Engine) observe(op Op, err error) {
	if e.observer == nil {
		return
	}
	e.observer.CommandApplied(op, Outcome(err), e.board.Status(e.lastNow))
}

// Submit queues cmd for the Run loop and waits for its result.
// Thread-safe: may be called from any goroutine.
//
// If ctx ends before the command is applied Submit returns ctx.Err(); a
// command whose context has ended by the time it is dequeued is skipped.
func (e *Engine) Submit(ctx context.Context, cmd Command) (Result, error) {
	r := request{ctx: ctx, cmd: cmd, reply: make(chan reply, 1)}
	if !e.queue.Enqueue(r) {
		return Result{Op: cmd.Op}, NewStoppedError()
	}
	select {
	case <-ctx.Done():
		return Result{Op: cmd.Op}, ctx.Err()
	case rep := <-r.reply:
		return rep.res, rep.err
	}
}

// Run starts the single-writer loop. Blocks until ctx is cancelled or Stop
// is called. Commands still queued at shutdown fail with a stopped error.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "board", e.boardID, "seq", e.clock.Current())

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			e.handle(ctx, r)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.failPending(e.queue.Close())
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, r request) {
	if err := r.ctx.Err(); err != nil {
		r.reply <- reply{res: Result{Op: r.cmd.Op}, err: err}
		return
	}
	res, err := e.Apply(ctx, r.cmd)
	r.reply <- reply{res: res, err: err}
}

func (e *Engine) failPending(pending []request) {
	for _, r := range pending {
		r.reply <- reply{res: Result{Op: r.cmd.Op}, err: NewStoppedError()}
	}
}

// Stop shuts down the Run loop. Commands still queued fail with a stopped
// error.
func (e *Engine) Stop() {
	e.failPending(e.queue.Close())
}

// Digest returns the state digest of the in-memory board.
// Only call it when Run is not active.
func (e *Engine) Digest() (string, error) {
	return e.board.Digest()
}
