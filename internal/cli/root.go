package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/mosaic/internal/config"
	"github.com/roach88/mosaic/internal/engine"
)

// RootOptions holds global flags and the configuration resolved from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string
	Caller     string
	Now        int64

	// Config is loaded in PersistentPreRunE from defaults, the config file,
	// MOSAIC_* variables and flags.
	Config *config.Config

	// Logger is built from Config.Log and --verbose.
	Logger *slog.Logger

	// IDs generates board ids for init. Defaults to UUIDv7Generator.
	IDs engine.IDGenerator

	// LogWriter receives log output. Defaults to stderr.
	LogWriter io.Writer
}

// NewRootCommand creates the root command for the mosaic CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mosaic",
		Short: "mosaic - a shared canvas filled one tile at a time",
		Long: `A shared, growing mosaic canvas. Participants reserve a cell near the
center, draw a tile into it, and the canvas grows outward ring by ring.

Board commands run against a SQLite database (--db). "mosaic serve" exposes
the same commands over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default is $HOME/.config/mosaic/config.yaml)")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite database (default mosaic.db)")
	flags.StringVar(&opts.Caller, "caller", "", "caller identity for canvas commands")
	flags.Int64Var(&opts.Now, "now", 0, "evaluate the command at this time instead of the wall clock")

	cmd.AddCommand(NewInitCommand(opts))
	for _, spec := range boardCommands {
		cmd.AddCommand(newBoardCommand(opts, spec))
	}
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// resolve loads configuration with flags taking precedence, validates the
// output format and sets up logging.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	v := viper.New()
	if err := config.Setup(v, o.ConfigFile); err != nil {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"db.path":       "db",
		"caller":        "caller",
		"output.format": "format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return WrapExitError(ExitCommandError, "failed to bind flag "+flag, err)
		}
	}
	if o.Verbose {
		v.Set("log.level", "debug")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Config = cfg
	o.Format = cfg.Output.Format
	o.Database = cfg.DB.Path
	o.Caller = cfg.Caller
	if o.IDs == nil {
		o.IDs = engine.UUIDv7Generator{}
	}
	o.Logger = newLogger(o.logWriter(), cfg.Log)
	slog.SetDefault(o.Logger)
	return nil
}

func (o *RootOptions) logWriter() io.Writer {
	if o.LogWriter != nil {
		return o.LogWriter
	}
	return os.Stderr
}

// timeSource returns the fixed --now time when the flag was given and the
// wall clock otherwise.
func (o *RootOptions) timeSource(cmd *cobra.Command) engine.TimeSource {
	if f := cmd.Flags().Lookup("now"); f != nil && f.Changed {
		return engine.FixedTime(o.Now)
	}
	return engine.WallTime{}
}

// newLogger builds the slog handler described by cfg.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
