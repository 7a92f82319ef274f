package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/boardspec"
	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/ir"
	"github.com/roach88/mosaic/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	BoardFile string
	ID        string
}

// InitResult describes a newly created board.
type InitResult struct {
	BoardID  string `json:"board_id"`
	Database string `json:"database"`
	TTL      int64  `json:"ttl"`
	TileSize int    `json:"tile_size"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("Initialized board %s in %s (ttl %d, tile size %d)",
		r.BoardID, r.Database, r.TTL, r.TileSize)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new idle board",
		Long: `Create a new idle board in the database.

The board geometry comes from a CUE definition (--board, or board.file in the
config file). Without one the default board is used: 16-value tiles and a
1800 second lease.

Examples:
  mosaic init --db ./mosaic.db
  mosaic init --db ./mosaic.db --board ./board.cue`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.BoardFile, "board", "", "CUE board definition")
	cmd.Flags().StringVar(&opts.ID, "id", "", "board id (default board-<uuidv7>)")

	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	out := opts.formatter(cmd)

	boardFile := opts.BoardFile
	if boardFile == "" {
		boardFile = opts.Config.Board.File
	}
	spec := boardspec.Default()
	if boardFile != "" {
		var err error
		if spec, err = boardspec.LoadFile(boardFile); err != nil {
			return WrapExitError(ExitCommandError, "failed to load board definition", err)
		}
	}

	b, err := board.New(spec.Config())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid board", err)
	}

	id := opts.ID
	if id == "" {
		id = "board-" + opts.IDs.Generate()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if err := st.Init(cmdContext(cmd), id, b.Snapshot()); err != nil {
		if errors.Is(err, store.ErrAlreadyInitialized) {
			return WrapExitError(ExitCommandError, "database already holds a board", err)
		}
		return WrapExitError(ExitCommandError, "failed to initialize board", err)
	}
	opts.Logger.Info("board initialized", "board", id, "db", opts.Database)

	return out.Success(InitResult{
		BoardID:  id,
		Database: opts.Database,
		TTL:      spec.TTL,
		TileSize: spec.TileSize,
	})
}

// boardCommand describes one board operation exposed as a subcommand.
type boardCommand struct {
	op      engine.Op
	short   string
	long    string
	example string
}

var boardCommands = []boardCommand{
	{
		op:      engine.OpStart,
		short:   "Open the board for reservations",
		example: "mosaic start --db ./mosaic.db",
	},
	{
		op:      engine.OpFinish,
		short:   "Close the board; closed is final",
		example: "mosaic finish --db ./mosaic.db",
	},
	{
		op:    engine.OpReserve,
		short: "Lease the lowest free cell in the window",
		long: `Lease a cell for --caller. A caller that already holds a lease keeps
its cell and has the lease renewed.`,
		example: "mosaic reserve --caller alice",
	},
	{
		op:    engine.OpDraw,
		short: "Draw a tile into the caller's leased cell",
		long: `Draw --tile into the cell --caller holds a lease on. The tile is a
comma-separated list of values 0..255 with exactly the board's tile size, and
must not be all zero.`,
		example: "mosaic draw --caller alice --tile 1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16",
	},
	{
		op:      engine.OpIndex,
		short:   "Show the caller's leased cell (0 when none)",
		example: "mosaic index --caller alice",
	},
	{
		op:      engine.OpNeighbors,
		short:   "Show the tiles around the caller's leased cell",
		example: "mosaic neighbors --caller alice --format json",
	},
	{
		op:      engine.OpStatus,
		short:   "Summarize the board",
		example: "mosaic status --db ./mosaic.db",
	},
}

// BoardOptions holds flags for the board operation commands.
type BoardOptions struct {
	*RootOptions
	Tile string
}

func newBoardCommand(rootOpts *RootOptions, spec boardCommand) *cobra.Command {
	opts := &BoardOptions{RootOptions: rootOpts}

	long := spec.long
	if long == "" {
		long = spec.short + "."
	}
	cmd := &cobra.Command{
		Use:     string(spec.op),
		Short:   spec.short,
		Long:    long,
		Example: "  " + spec.example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoardCommand(cmd, opts, spec.op)
		},
	}
	if spec.op == engine.OpDraw {
		cmd.Flags().StringVar(&opts.Tile, "tile", "", "comma-separated tile values")
		_ = cmd.MarkFlagRequired("tile")
	}
	return cmd
}

func runBoardCommand(cmd *cobra.Command, opts *BoardOptions, op engine.Op) error {
	out := opts.formatter(cmd)
	command := engine.Command{Op: op}

	switch op {
	case engine.OpReserve, engine.OpDraw, engine.OpIndex, engine.OpNeighbors:
		// An empty caller is left to the board, which rejects it.
		if strings.TrimSpace(opts.Caller) != "" {
			caller, err := ir.NormalizeCaller(opts.Caller)
			if err != nil {
				return out.Rejected(&board.Error{Code: board.CodeInvalidCaller, Message: err.Error(), Index: -1})
			}
			command.Caller = caller
		}
	}
	if op == engine.OpDraw {
		tile, err := ir.ParseTile(opts.Tile)
		if err != nil {
			return out.Rejected(&board.Error{Code: board.CodeInvalidTile, Message: err.Error(), Index: -1})
		}
		command.Tile = tile
	}

	ctx := cmdContext(cmd)
	eng, closeStore, err := opts.openEngine(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := eng.Apply(ctx, command)
	if err != nil {
		if board.CodeOf(err) != "" {
			return out.Rejected(err)
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", op), err)
	}
	return out.Success(ResultView(res))
}

// openEngine opens the database and builds an engine over it. The returned
// func closes the store.
func (o *RootOptions) openEngine(ctx context.Context, cmd *cobra.Command, extra ...engine.Option) (*engine.Engine, func(), error) {
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	closeStore := func() {
		if err := st.Close(); err != nil {
			o.Logger.Error("error closing database", "error", err)
		}
	}

	opts := append([]engine.Option{
		engine.WithTimeSource(o.timeSource(cmd)),
		engine.WithLogger(o.Logger),
	}, extra...)
	eng, err := engine.New(ctx, st, opts...)
	if err != nil {
		closeStore()
		if errors.Is(err, store.ErrNotInitialized) {
			return nil, nil, WrapExitError(ExitCommandError, "no board in database (run mosaic init)", err)
		}
		return nil, nil, WrapExitError(ExitCommandError, "failed to load board", err)
	}
	return eng, closeStore, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ResultView renders an engine result for text output. It encodes to the
// same JSON as engine.Result.
type ResultView engine.Result

func (r ResultView) String() string {
	var sb strings.Builder
	switch r.Op {
	case engine.OpStart:
		fmt.Fprintf(&sb, "Board started (seq %d)", r.Seq)
	case engine.OpFinish:
		fmt.Fprintf(&sb, "Board finished (seq %d)", r.Seq)
	case engine.OpReserve:
		fmt.Fprintf(&sb, "Reserved cell %d at %s (seq %d)", r.Index, r.Coordinate, r.Seq)
	case engine.OpDraw:
		fmt.Fprintf(&sb, "Drew cell %d at %s (seq %d)", r.Index, r.Coordinate, r.Seq)
	case engine.OpIndex:
		if r.Index == 0 {
			sb.WriteString("No lease held (center 0)")
		} else {
			fmt.Fprintf(&sb, "Cell %d at %s", r.Index, r.Coordinate)
		}
	case engine.OpNeighbors:
		fmt.Fprintf(&sb, "Neighbors of cell %d at %s:", r.Index, r.Coordinate)
		if r.Neighbors != nil {
			for i, side := range []string{"top", "right", "bottom", "left"} {
				fmt.Fprintf(&sb, "\n  %-6s %s", side, r.Neighbors[i])
			}
		}
	case engine.OpStatus:
		if r.Status != nil {
			st := r.Status
			fmt.Fprintf(&sb, "State:     %s\n", st.State)
			fmt.Fprintf(&sb, "Watermark: %d (ring %d)\n", st.Watermark, st.Ring)
			fmt.Fprintf(&sb, "Window:    [%d, %d)\n", st.WindowLo, st.WindowHi)
			fmt.Fprintf(&sb, "Leases:    %d (%d expired)\n", st.Leases, st.ExpiredLeases)
			fmt.Fprintf(&sb, "Drawn:     %d\n", st.Drawn)
			fmt.Fprintf(&sb, "Tile size: %d, TTL: %d", st.TileSize, st.TTL)
		}
	default:
		fmt.Fprintf(&sb, "%s ok", r.Op)
	}
	return sb.String()
}
