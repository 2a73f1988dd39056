package job

import "context"

// Result is the outcome a service executor reports for one run. A result
// with a non-empty ErrorMessage is an error outcome, but it is data, not
// control flow: the run still finishes, with the error as its summary.
type Result struct {
	Message      string
	ErrorMessage string
}

// IsError reports whether the result carries an error outcome.
func (r *Result) IsError() bool {
	return r != nil && r.ErrorMessage != ""
}

// Summary returns the human-readable outcome line for the row.
func (r *Result) Summary() string {
	if r == nil {
		return ""
	}
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	return r.Message
}

// Executor performs the business logic of a job. A returned error marks
// the attempt failed and drives the retry decision; an error Result does
// not (see Result).
type Executor interface {
	Execute(ctx context.Context, serviceName string, jobCtx map[string]interface{}) (*Result, error)
}
