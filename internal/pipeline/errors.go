package pipeline

import "fmt"

type ErrorKind string

// Run-level failure kinds. Per-ticket classification failures are data
// (see Outcome), never errors.
const (
	ErrInvalidInput ErrorKind = "invalid_input"
	ErrExecution    ErrorKind = "execution"
	ErrPersistence  ErrorKind = "persistence"
)

// RunError is the classified failure of a whole pipeline invocation.
// RunID is 0 when the invocation failed before a run row existed.
type RunError struct {
	Kind    ErrorKind
	RunID   int64
	Message string
	Err     error
}

func (e *RunError) Error() string {
	if e.RunID != 0 {
		return fmt.Sprintf("%s (run %d): %s", e.Kind, e.RunID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func runErrf(kind ErrorKind, runID int64, err error, format string, args ...any) *RunError {
	return &RunError{Kind: kind, RunID: runID, Message: fmt.Sprintf(format, args...), Err: err}
}
