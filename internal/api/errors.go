package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/engine"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Codes for failures that are not board rejections.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInternal       = "INTERNAL"
)

// statusFor maps an engine error to an HTTP status and error code.
//
// State and capacity conflicts are 409, malformed input is 400 and drawing
// without a lease is 403.
func statusFor(err error) (int, string) {
	if code := board.CodeOf(err); code != "" {
		switch code {
		case board.CodeNotReserved:
			return http.StatusForbidden, string(code)
		case board.CodeInvalidTile, board.CodeEmptyTile, board.CodeInvalidCaller:
			return http.StatusBadRequest, string(code)
		default:
			return http.StatusConflict, string(code)
		}
	}

	var re *engine.RuntimeError
	if errors.As(err, &re) {
		switch re.Code {
		case engine.ErrCodeStopped:
			return http.StatusServiceUnavailable, string(re.Code)
		case engine.ErrCodeUnknownOp:
			return http.StatusBadRequest, string(re.Code)
		default:
			return http.StatusInternalServerError, string(re.Code)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, CodeUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

func abortWithError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: GetRequestID(c),
	})
}
