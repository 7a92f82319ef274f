package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/mosaic/internal/api"
	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/metrics"
	"github.com/roach88/mosaic/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	NoMetrics bool

	// Ready, if set, receives the router once the engine is loaded.
	Ready func(http.Handler)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP",
		Long: `Start the single-writer engine and serve the board over HTTP.

All requests are queued to one engine goroutine, so concurrent callers see
one consistent order of commands. The caller identity is read from the
X-Mosaic-Caller header. GET /metrics serves Prometheus metrics unless
--no-metrics is given.

Example:
  mosaic serve --db ./mosaic.db --addr 127.0.0.1:8080
  MOSAIC_SERVER_ADDR=:9000 mosaic serve --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default server.addr, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&opts.NoMetrics, "no-metrics", false, "disable GET /metrics")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	logger := opts.Logger
	cfg := opts.Config.Server

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Addr
	}

	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engineOpts := []engine.Option{
		engine.WithTimeSource(opts.timeSource(cmd)),
		engine.WithLogger(logger),
	}
	routerOpts := api.Options{Logger: logger, IDs: engine.UUIDv7Generator{}}
	if cfg.Metrics && !opts.NoMetrics {
		collector := metrics.New()
		engineOpts = append(engineOpts, engine.WithObserver(collector))
		routerOpts.Metrics = collector.Handler()
	}

	eng, err := engine.New(ctx, st, engineOpts...)
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			return WrapExitError(ExitCommandError, "no board in database (run mosaic init)", err)
		}
		return WrapExitError(ExitCommandError, "failed to load board", err)
	}
	router := api.NewRouter(eng, st, routerOpts)
	if opts.Ready != nil {
		opts.Ready(router)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := eng.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := api.Serve(gctx, addr, router, cfg.ShutdownTimeout()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		// Server stopped cleanly; stop the engine too.
		cancel()
		return nil
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Serving board %s on http://%s\n", eng.BoardID(), addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}
