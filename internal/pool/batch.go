package pool

import (
	"cmp"
	"context"
	"slices"
	"time"

	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/task"
)

type work struct {
	ctx   context.Context
	task  *task.Task
	seq   int
	done  chan outcome
	group *finalGroup
}

type outcome struct {
	work     *work
	value    any
	err      error
	duration time.Duration
}

// finalGroup holds a final finalizer until its siblings have completed.
type finalGroup struct {
	final     *task.Task
	remaining int
	failed    bool
}

type result struct {
	seq   int
	value any
}

// batch is the bookkeeping of one Runner call. It is only touched by the
// collecting goroutine.
type batch struct {
	p        *Pool
	nextSeq  int
	results  []result
	failures []Failure
}

func newBatch(p *Pool) *batch { return &batch{p: p} }

func (b *batch) newWork(ctx context.Context, t *task.Task, done chan outcome, g *finalGroup) *work {
	w := &work{ctx: ctx, task: t, seq: b.nextSeq, done: done, group: g}
	b.nextSeq++
	return w
}

func (b *batch) current(t *task.Task) bool {
	if t.NeedsRebuild() {
		return false
	}
	b.p.logger.Debug("Targets are current, skipping task",
		logfields.Task(t.String()),
		logfields.Target(t.Target))
	b.p.recorder.IncTaskResult(string(b.p.kind), metrics.ResultSkipped)
	return true
}

func (b *batch) succeed(w *work, value any, d time.Duration) {
	b.results = append(b.results, result{seq: w.seq, value: value})
	b.p.recorder.IncTaskResult(string(b.p.kind), metrics.ResultSuccess)
	b.p.logger.Debug("Task completed",
		logfields.Task(w.task.String()),
		logfields.TaskIndex(w.seq),
		logfields.DurationMS(float64(d.Microseconds())/1000))
}

func (b *batch) fail(w *work, err error) {
	f := Failure{
		Task:        w.task,
		Description: w.task.String(),
		Index:       w.seq,
		Ignored:     w.task.IgnoreErrors,
		Err:         err,
	}
	b.failures = append(b.failures, f)
	if f.Ignored {
		b.results = append(b.results, result{seq: w.seq})
		b.p.recorder.IncTaskResult(string(b.p.kind), metrics.ResultIgnored)
		b.p.logger.Warn("Task failed, continuing",
			logfields.Task(f.Description),
			logfields.TaskIndex(f.Index),
			logfields.Error(err))
		return
	}
	b.p.recorder.IncTaskResult(string(b.p.kind), metrics.ResultFailed)
	b.p.logger.Error("Task failed, waiting for other tasks to finish",
		logfields.Task(f.Description),
		logfields.TaskIndex(f.Index),
		logfields.Error(err))
}

// err returns the aggregate error of every non-ignored failure.
func (b *batch) err() error {
	var fatal []Failure
	for _, f := range b.failures {
		if !f.Ignored {
			fatal = append(fatal, f)
		}
	}
	if len(fatal) == 0 {
		return nil
	}
	slices.SortStableFunc(fatal, func(a, c Failure) int { return cmp.Compare(a.Index, c.Index) })
	return resultsError(fatal, b.p.kind)
}

func (b *batch) ordered() []any {
	slices.SortStableFunc(b.results, func(a, c result) int { return cmp.Compare(a.seq, c.seq) })
	out := make([]any, len(b.results))
	for i, r := range b.results {
		out[i] = r.value
	}
	return out
}

func (b *batch) runConcurrent(ctx context.Context, tasks []*task.Task) error {
	done := make(chan outcome)
	var backlog []*work
	for _, t := range tasks {
		if b.current(t) {
			continue
		}
		backlog = append(backlog, b.newWork(ctx, t, done, nil))
	}

	inflight := 0
	ctxDone := ctx.Done()
	stopped := b.p.stopChan
	for inflight > 0 || len(backlog) > 0 {
		if ctxDone != nil && ctx.Err() != nil {
			ctxDone = nil
			b.abandon(backlog, ctx.Err())
			backlog = nil
		}
		var send chan *work
		var next *work
		if len(backlog) > 0 {
			send, next = b.p.jobs, backlog[0]
		}
		select {
		case send <- next:
			backlog = backlog[1:]
			inflight++
		case o := <-done:
			inflight--
			unblocked := b.complete(ctx, o, done)
			if stopped == nil {
				b.abandon(unblocked, ErrClosed)
				continue
			}
			backlog = append(backlog, unblocked...)
		case <-ctxDone:
			ctxDone = nil
			b.abandon(backlog, ctx.Err())
			backlog = nil
		case <-stopped:
			stopped = nil
			b.abandon(backlog, ErrClosed)
			backlog = nil
		}
	}
	return b.err()
}

// abandon records undispatched work as failed.
func (b *batch) abandon(backlog []*work, err error) {
	for _, w := range backlog {
		b.fail(w, err)
	}
}

// complete records an outcome and returns the work it unblocks: the
// finalizers of a successful task, and a final finalizer whose siblings are
// now all done.
func (b *batch) complete(ctx context.Context, o outcome, done chan outcome) []*work {
	w := o.work
	var next []*work
	if o.err != nil {
		b.fail(w, o.err)
	} else {
		b.succeed(w, o.value, o.duration)
		if ctx.Err() == nil {
			next = b.finalizers(ctx, w.task, done)
		}
	}
	if g := w.group; g != nil {
		g.remaining--
		if o.err != nil && !w.task.IgnoreErrors {
			g.failed = true
		}
		if g.remaining == 0 {
			next = append(next, b.release(ctx, g, done)...)
		}
	}
	return next
}

func (b *batch) finalizers(ctx context.Context, parent *task.Task, done chan outcome) []*work {
	var g *finalGroup
	if final := parent.Final(); final != nil {
		g = &finalGroup{final: final}
	}
	var out []*work
	for _, f := range parent.Finalizers() {
		if b.current(f) {
			continue
		}
		out = append(out, b.newWork(ctx, f, done, g))
		if g != nil {
			g.remaining++
		}
	}
	if g != nil && g.remaining == 0 {
		out = append(out, b.release(ctx, g, done)...)
	}
	return out
}

func (b *batch) release(ctx context.Context, g *finalGroup, done chan outcome) []*work {
	if g.failed {
		b.p.logger.Warn("Skipping final task after failed finalizer", logfields.Task(g.final.String()))
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return []*work{b.newWork(ctx, g.final, done, nil)}
}

// runSerial runs each task and then its finalizers, depth first, in the caller.
func (b *batch) runSerial(ctx context.Context, tasks []*task.Task) error {
	for _, t := range tasks {
		b.serial(ctx, t)
	}
	return b.err()
}

// serial runs t and, after it succeeds, its finalizers. Each finalizer is
// recorded as its own task. The final finalizer runs last, and only when no
// sibling failed without IgnoreErrors. It reports whether t itself failed
// without IgnoreErrors.
func (b *batch) serial(ctx context.Context, t *task.Task) bool {
	if b.current(t) {
		return false
	}
	w := b.newWork(ctx, t, nil, nil)
	if err := ctx.Err(); err != nil {
		b.fail(w, err)
		return !t.IgnoreErrors
	}
	o := b.p.execute(w)
	if o.err != nil {
		b.fail(w, o.err)
		return !t.IgnoreErrors
	}
	b.succeed(w, o.value, o.duration)
	if ctx.Err() != nil {
		return false
	}

	failed := false
	for _, f := range t.Finalizers() {
		if b.serial(ctx, f) {
			failed = true
		}
	}
	final := t.Final()
	switch {
	case final == nil || ctx.Err() != nil:
	case failed:
		b.p.logger.Warn("Skipping final task after failed finalizer", logfields.Task(final.String()))
	default:
		b.serial(ctx, final)
	}
	return false
}
