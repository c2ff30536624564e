package task

import (
	"context"
	"fmt"
)

// Job is the work a task performs.
type Job func(ctx context.Context, args Args) (any, error)

// MapFunc is applied to each item of a map task.
type MapFunc func(ctx context.Context, item any) (any, error)

// Task is one schedulable unit of work.
//
// Target lists the files the job writes and Dependency the files it reads.
// A task with neither set always runs.
type Task struct {
	Job         Job
	Args        Args
	Target      []string
	Dependency  []string
	Description string
	// Force makes the task run regardless of file state.
	Force bool
	// IgnoreErrors records a failure without failing the batch.
	IgnoreErrors bool
	// Checker decides staleness; nil uses MtimeChecker.
	Checker Checker

	mapFn MapFunc
	items []any

	finalizers []*Task
	final      *Task
}

// New returns a task running job with args.
func New(job Job, args Args) *Task {
	return &Task{Job: job, Args: args}
}

// NewMapTask returns a task that applies fn to every item.
func NewMapTask(fn MapFunc, items []any) *Task {
	return &Task{mapFn: fn, items: items}
}

// IsMap reports whether t was built by NewMapTask.
func (t *Task) IsMap() bool { return t.mapFn != nil }

// Items returns the items of a map task.
func (t *Task) Items() []any { return t.items }

// MapFunc returns the per-item function of a map task.
func (t *Task) MapFunc() MapFunc { return t.mapFn }

func (t *Task) String() string {
	if t.Description != "" {
		return t.Description
	}
	if len(t.Target) > 0 {
		return fmt.Sprintf("build %v", t.Target)
	}
	return "task"
}

// Validate reports a task that has nothing to run.
func (t *Task) Validate() error {
	if t.Job == nil && t.mapFn == nil {
		return noJobError(t)
	}
	return nil
}

// AddFinalizer appends f to the tasks that run after t succeeds and returns f.
func (t *Task) AddFinalizer(f *Task) *Task {
	t.finalizers = append(t.finalizers, f)
	return f
}

// SetFinal sets the finalizer that runs after every other finalizer.
func (t *Task) SetFinal(f *Task) *Task {
	t.final = f
	return f
}

// Finalizers returns the ordinary finalizers in the order they were added.
func (t *Task) Finalizers() []*Task { return append([]*Task(nil), t.finalizers...) }

// Final returns the final finalizer, if any.
func (t *Task) Final() *Task { return t.final }

// HasFinalizers reports whether anything runs after t.
func (t *Task) HasFinalizers() bool { return len(t.finalizers) > 0 || t.final != nil }

// NeedsRebuild reports whether the task must run. It is evaluated again on
// every call.
func (t *Task) NeedsRebuild() bool {
	if t.Force || len(t.Target) == 0 || len(t.Dependency) == 0 {
		return true
	}
	c := t.Checker
	if c == nil {
		c = MtimeChecker{}
	}
	return c.Stale(t.Target, t.Dependency)
}

// Run executes the job. Errors from the job are returned unchanged.
func (t *Task) Run(ctx context.Context) (any, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.mapFn != nil {
		out := make([]any, len(t.items))
		for i, item := range t.items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v, err := t.mapFn(ctx, item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return t.Job(ctx, t.Args)
}

// Finalize runs the finalizer tree of t serially, depth first, with the
// final finalizer last. It stops at the first error.
func (t *Task) Finalize(ctx context.Context) ([]any, error) {
	var results []any
	run := func(f *Task) error {
		v, err := f.Run(ctx)
		if err != nil {
			return err
		}
		results = append(results, v)
		nested, err := f.Finalize(ctx)
		results = append(results, nested...)
		return err
	}
	for _, f := range t.finalizers {
		if err := run(f); err != nil {
			return results, err
		}
	}
	if t.final != nil {
		if err := run(t.final); err != nil {
			return results, err
		}
	}
	return results, nil
}
