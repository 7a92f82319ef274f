package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an engine failure that is not a board rejection.
//
// Board rejections (capacity, lifecycle, lease) are returned as *board.Error
// unchanged. RuntimeError covers the engine itself:
//   - Stopped: the Run loop is gone
//   - Persistence: the store refused a commit; the board was reloaded
//   - Replay diverged: the journal does not reproduce the stored state
//   - Unknown op: the command names no operation
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Seq is the journal position involved, if any.
	Seq int64

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStopped indicates a command was submitted after Run returned.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodePersistence indicates the store rejected a commit.
	ErrCodePersistence RuntimeErrorCode = "PERSISTENCE_FAILED"

	// ErrCodeReplayDiverged indicates replay produced a different outcome
	// or final state than the one stored.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"

	// ErrCodeUnknownOp indicates an unrecognized operation.
	ErrCodeUnknownOp RuntimeErrorCode = "UNKNOWN_OP"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Seq > 0 {
		msg = fmt.Sprintf("%s (seq=%d)", msg, e.Seq)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsStopped returns true if err reports a stopped engine.
// Uses errors.As to handle wrapped errors.
func IsStopped(err error) bool { return hasCode(err, ErrCodeStopped) }

// IsPersistenceError returns true if err reports a failed commit.
func IsPersistenceError(err error) bool { return hasCode(err, ErrCodePersistence) }

// IsReplayDiverged returns true if err reports a replay divergence.
func IsReplayDiverged(err error) bool { return hasCode(err, ErrCodeReplayDiverged) }

// IsUnknownOp returns true if err reports an unknown operation.
func IsUnknownOp(err error) bool { return hasCode(err, ErrCodeUnknownOp) }

// NewStoppedError creates a RuntimeError for a stopped engine.
func NewStoppedError() *RuntimeError {
	return &RuntimeError{Code: ErrCodeStopped, Message: "engine is not running"}
}

// NewPersistenceError creates a RuntimeError for a failed commit.
func NewPersistenceError(seq int64, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePersistence,
		Message: "commit failed, board reloaded from store",
		Seq:     seq,
		Err:     err,
	}
}

// NewReplayDivergedError creates a RuntimeError for a replay mismatch.
func NewReplayDivergedError(seq int64, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeReplayDiverged,
		Message: fmt.Sprintf(format, args...),
		Seq:     seq,
	}
}

// NewUnknownOpError creates a RuntimeError for an unrecognized operation.
func NewUnknownOpError(op Op) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownOp,
		Message: fmt.Sprintf("unknown operation %q", op),
	}
}
