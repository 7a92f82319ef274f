// Package api exposes a board over HTTP.
//
// Every request becomes one engine command submitted to the engine's
// single-writer loop, so concurrent HTTP clients are serialized exactly like
// CLI invocations. The caller identity travels in the X-Mosaic-Caller
// header; it is normalized but not authenticated.
//
// Routes, all under /v1:
//
//	POST /board/start      start the board
//	POST /board/finish     finish the board
//	GET  /board/status     board summary
//	POST /canvas/reserve   reserve a cell for the caller
//	POST /canvas/draw      draw {"tile":[...]} into the caller's cell
//	GET  /canvas/index     the caller's leased index
//	GET  /canvas/neighbors tiles around the caller's cell
//
// GET /healthz checks the store and GET /metrics serves Prometheus metrics
// when a metrics handler is configured.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/mosaic/internal/engine"
)

// Commander submits commands to the engine.
type Commander interface {
	Submit(ctx context.Context, cmd engine.Command) (engine.Result, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	// Metrics, if set, is served at GET /metrics.
	Metrics http.Handler

	// IDs generates request ids. Default: engine.UUIDv7Generator.
	IDs engine.IDGenerator

	// Logger receives one line per request. Default: slog.Default().
	Logger *slog.Logger
}

// NewRouter builds the gin engine serving the board behind cmd.
func NewRouter(cmd Commander, store Pinger, opts Options) *gin.Engine {
	if opts.IDs == nil {
		opts.IDs = engine.UUIDv7Generator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(opts.IDs), RequestLogger(opts.Logger))

	h := NewHandlers(cmd, store)
	router.GET("/healthz", h.HandleHealth)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	return router
}

// RegisterRoutes registers the board routes on rg.
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	b := rg.Group("/board")
	b.POST("/start", h.HandleStart)
	b.POST("/finish", h.HandleFinish)
	b.GET("/status", h.HandleStatus)

	c := rg.Group("/canvas", CallerIdentity())
	c.POST("/reserve", h.HandleReserve)
	c.POST("/draw", h.HandleDraw)
	c.GET("/index", h.HandleIndex)
	c.GET("/neighbors", h.HandleNeighbors)
}

// Serve runs an HTTP server on addr until ctx ends, then shuts it down,
// waiting at most shutdownTimeout for in-flight requests.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("http server stopped", "addr", addr)
	return nil
}
