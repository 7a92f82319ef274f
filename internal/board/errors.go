package board

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes board errors. Codes are stable strings: they are
// journaled, returned over HTTP and printed by the CLI.
type ErrorCode string

const (
	// CodeNotStarted indicates the operation requires an active board.
	CodeNotStarted ErrorCode = "NOT_STARTED"

	// CodeAlreadyStarted indicates Start was called on an active board.
	CodeAlreadyStarted ErrorCode = "ALREADY_STARTED"

	// CodeAlreadyFinished indicates Start was called on a closed board.
	CodeAlreadyFinished ErrorCode = "ALREADY_FINISHED"

	// CodeEmptyTile indicates a draw payload of all zeros.
	CodeEmptyTile ErrorCode = "EMPTY_TILE"

	// CodeNotReserved indicates the caller holds no lease to draw into.
	CodeNotReserved ErrorCode = "NOT_RESERVED"

	// CodeCapacityExceeded indicates no eligible cell in the admission window.
	CodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// CodeInvalidTile indicates a draw payload of the wrong length.
	CodeInvalidTile ErrorCode = "INVALID_TILE"

	// CodeInvalidCaller indicates an empty caller identity.
	CodeInvalidCaller ErrorCode = "INVALID_CALLER"
)

// Error is a rejected board operation. A rejected operation never changes
// board state.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Index is the cell involved, or -1 when no cell is.
	Index int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Index >= 0 && e.Message != "" {
		return fmt.Sprintf("%s: %s (index=%d)", e.Code, e.Message, e.Index)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotReserved)
// works regardless of message or index.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotStarted       = &Error{Code: CodeNotStarted, Index: -1}
	ErrAlreadyStarted   = &Error{Code: CodeAlreadyStarted, Index: -1}
	ErrAlreadyFinished  = &Error{Code: CodeAlreadyFinished, Index: -1}
	ErrEmptyTile        = &Error{Code: CodeEmptyTile, Index: -1}
	ErrNotReserved      = &Error{Code: CodeNotReserved, Index: -1}
	ErrCapacityExceeded = &Error{Code: CodeCapacityExceeded, Index: -1}
	ErrInvalidTile      = &Error{Code: CodeInvalidTile, Index: -1}
	ErrInvalidCaller    = &Error{Code: CodeInvalidCaller, Index: -1}
)

func newError(code ErrorCode, index int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Index:   index,
	}
}

// CodeOf returns the board error code carried by err, or "" if err is not a
// board error. Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsNotStarted returns true if err is a not-started error.
func IsNotStarted(err error) bool { return CodeOf(err) == CodeNotStarted }

// IsNotReserved returns true if err is a not-reserved error.
func IsNotReserved(err error) bool { return CodeOf(err) == CodeNotReserved }

// IsCapacityExceeded returns true if err is a capacity error.
func IsCapacityExceeded(err error) bool { return CodeOf(err) == CodeCapacityExceeded }

// IsEmptyTile returns true if err is an empty-tile error.
func IsEmptyTile(err error) bool { return CodeOf(err) == CodeEmptyTile }

// IsInvalidInput returns true for errors caused by a malformed request
// rather than by board state.
func IsInvalidInput(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidTile, CodeInvalidCaller, CodeEmptyTile:
		return true
	}
	return false
}

// IsLifecycle returns true for errors caused by the board's lifecycle state.
func IsLifecycle(err error) bool {
	switch CodeOf(err) {
	case CodeNotStarted, CodeAlreadyStarted, CodeAlreadyFinished:
		return true
	}
	return false
}
