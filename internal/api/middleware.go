package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/engine"
	"github.com/roach88/mosaic/internal/ir"
)

// Header names.
const (
	HeaderCaller    = "X-Mosaic-Caller"
	HeaderRequestID = "X-Request-ID"
)

// Context keys.
const (
	requestIDKey = "mosaic_request_id"
	callerKey    = "mosaic_caller"
)

// RequestID tags every request with an id, reusing the client's
// X-Request-ID when present, and echoes it in the response.
func RequestID(ids engine.IDGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = ids.Generate()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"caller", GetCaller(c),
			"request_id", GetRequestID(c),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// CallerIdentity normalizes the X-Mosaic-Caller header and stores the
// caller in the context. A missing header leaves the caller empty, which
// the board rejects with INVALID_CALLER; a malformed one is rejected here.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderCaller)
		if raw == "" {
			c.Next()
			return
		}
		caller, err := ir.NormalizeCaller(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, string(board.CodeInvalidCaller), err.Error())
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// GetRequestID returns the request id set by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// GetCaller returns the caller set by CallerIdentity, or "".
func GetCaller(c *gin.Context) ir.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return ""
	}
	caller, _ := v.(ir.Caller)
	return caller
}
