package pool

import (
	"errors"
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/task"
)

var (
	// ErrUnknownKind is returned by New for an unsupported pool kind.
	ErrUnknownKind = errors.New("unknown pool kind")
	// ErrClosed is returned when running tasks on a closed pool.
	ErrClosed = errors.New("pool is closed")
	// ErrPanic wraps a panic raised inside a job.
	ErrPanic = errors.New("task panicked")
)

// Failure is one failed task of a batch.
type Failure struct {
	Task        *task.Task
	Description string
	Index       int
	Ignored     bool
	Err         error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %v", f.Description, f.Err)
}

// ResultsError lists every non-ignored failure of a batch.
type ResultsError struct {
	Failures []Failure
}

func (e *ResultsError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	noun := "tasks"
	if len(e.Failures) == 1 {
		noun = "task"
	}
	return fmt.Sprintf("%d %s failed: %s", len(e.Failures), noun, strings.Join(parts, "; "))
}

// Unwrap exposes each task error to errors.Is and errors.As.
func (e *ResultsError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}

func resultsError(failures []Failure, kind Kind) error {
	return ferrors.WrapError(&ResultsError{Failures: failures}, ferrors.CategoryPool, "task batch failed").
		WithContext("pool_kind", string(kind)).
		WithContext("failures", len(failures)).
		Build()
}
