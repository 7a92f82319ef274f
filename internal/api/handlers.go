package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/ir"
)

// Handlers turns HTTP requests into engine commands.
type Handlers struct {
	cmd   Commander
	store Pinger
}

// NewHandlers creates handlers submitting to cmd.
func NewHandlers(cmd Commander, store Pinger) *Handlers {
	return &Handlers{cmd: cmd, store: store}
}

// DrawRequest is the body of POST /v1/canvas/draw.
type DrawRequest struct {
	Tile ir.Tile `json:"tile" binding:"required"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handlers) submit(c *gin.Context, cmd engine.Command) {
	res, err := h.cmd.Submit(c.Request.Context(), cmd)
	if err != nil {
		status, code := statusFor(err)
		abortWithError(c, status, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleStart handles POST /v1/board/start.
func (h *Handlers) HandleStart(c *gin.Context) {
	h.submit(c, engine.Command{Op: engine.OpStart})
}

// HandleFinish handles POST /v1/board/finish.
func (h *Handlers) HandleFinish(c *gin.Context) {
	h.submit(c, engine.Command{Op: engine.OpFinish})
}

// HandleStatus handles GET /v1/board/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	h.submit(c, engine.Command{Op: engine.OpStatus})
}

// HandleReserve handles POST /v1/canvas/reserve.
func (h *Handlers) HandleReserve(c *gin.Context) {
	h.submit(c, engine.Command{Op: engine.OpReserve, Caller: GetCaller(c)})
}

// HandleDraw handles POST /v1/canvas/draw.
func (h *Handlers) HandleDraw(c *gin.Context) {
	var req DrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, string(board.CodeInvalidTile), err.Error())
		return
	}
	h.submit(c, engine.Command{Op: engine.OpDraw, Caller: GetCaller(c), Tile: req.Tile})
}

// HandleIndex handles GET /v1/canvas/index.
func (h *Handlers) HandleIndex(c *gin.Context) {
	h.submit(c, engine.Command{Op: engine.OpIndex, Caller: GetCaller(c)})
}

// HandleNeighbors handles GET /v1/canvas/neighbors.
func (h *Handlers) HandleNeighbors(c *gin.Context) {
	h.submit(c, engine.Command{Op: engine.OpNeighbors, Caller: GetCaller(c)})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
