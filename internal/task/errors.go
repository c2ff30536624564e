package task

import (
	"errors"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

var (
	// ErrNoJob is returned when a task without a job is run.
	ErrNoJob = errors.New("task has no job")
	// ErrArgs is returned when a job adapter receives the wrong argument form.
	ErrArgs = errors.New("task arguments do not match job")
)

func noJobError(t *Task) error {
	return ferrors.WrapError(ErrNoJob, ferrors.CategoryTask, "task has no job").
		WithContext("task", t.String()).
		Build()
}
