package harness

import "github.com/roach88/mosaic/internal/board"

// TraceEvent is one command as the harness saw it.
type TraceEvent struct {
	// Seq is the journal seq, 0 for queries.
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	Caller  string `json:"caller,omitempty"`
	Now     int64  `json:"now"`
	Outcome string `json:"outcome"`

	// Index is the cell the command resolved to, -1 when it was rejected.
	Index int `json:"index"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every command in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Status is the board summary after the last step.
	Status *board.Status `json:"status,omitempty"`

	// Digest is the state digest of the board after the last step.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a command to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
