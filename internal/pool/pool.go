package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/task"
)

// Kind selects how a pool executes tasks.
type Kind string

const (
	// Process runs one worker per CPU, for CPU-bound jobs.
	Process Kind = "process"
	// Thread runs two workers per CPU, for jobs that mostly wait on I/O.
	Thread Kind = "thread"
	// Event is accepted for compatibility and behaves like Thread.
	Event Kind = "event"
	// Serial runs every task in the caller, in submission order.
	Serial Kind = "serial"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Process, Thread, Event, Serial:
		return k, nil
	}
	return "", ferrors.WrapError(ErrUnknownKind, ferrors.CategoryValidation, "unknown pool kind").
		WithContext("kind", s).
		Build()
}

// DefaultSize returns the worker count used when none is configured.
func DefaultSize(kind Kind) int {
	switch kind {
	case Serial:
		return 1
	case Thread, Event:
		return 2 * runtime.NumCPU()
	}
	return runtime.NumCPU()
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger for task progress.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pool) {
		if r != nil {
			p.recorder = r
		}
	}
}

// Pool executes task batches. A pool is reusable across Runner calls until
// Close; batches on one pool run one at a time.
type Pool struct {
	kind     Kind
	size     int
	logger   *slog.Logger
	recorder metrics.Recorder

	jobs      chan *work
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	runMu sync.Mutex

	mu     sync.Mutex
	closed bool
	report []Failure
}

// New creates a pool and starts its workers. A size of zero or less uses
// DefaultSize.
func New(kind Kind, size int, opts ...Option) (*Pool, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultSize(kind)
	}
	if kind == Serial {
		size = 1
	}
	p := &Pool{
		kind:     kind,
		size:     size,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.recorder.SetPoolWorkers(string(kind), size)

	if kind != Serial {
		p.jobs = make(chan *work)
		for range size {
			p.wg.Add(1)
			go p.worker()
		}
	}
	p.logger.Debug("Started worker pool", logfields.PoolKind(string(kind)), logfields.PoolSize(size))
	return p, nil
}

func (p *Pool) Kind() Kind { return p.kind }
func (p *Pool) Size() int  { return p.size }

// Close stops the workers. It waits for running jobs to return.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stopChan)
		p.wg.Wait()
	})
	return nil
}

// LastReport returns every failure recorded by the most recent batch,
// ignored ones included.
func (p *Pool) LastReport() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.report)
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case w := <-p.jobs:
			w.done <- p.execute(w)
		}
	}
}

// Runner runs tasks and returns their results in submission order, with
// finalizer results following in the order the finalizers were dispatched.
// Tasks whose targets are current are skipped. Failed tasks with IgnoreErrors
// contribute a nil result; any other failure makes Runner return a
// *ResultsError (wrapped in a classified pool error) once every dispatched
// task has finished.
func (p *Pool) Runner(ctx context.Context, tasks []*task.Task) ([]any, error) {
	if p.isClosed() {
		return nil, ferrors.WrapError(ErrClosed, ferrors.CategoryPool, "pool is closed").Build()
	}
	for i, t := range tasks {
		if t == nil {
			return nil, ferrors.PoolError(fmt.Sprintf("task %d is nil", i)).Build()
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	p.runMu.Lock()
	defer p.runMu.Unlock()

	b := newBatch(p)
	var err error
	if p.kind == Serial {
		err = b.runSerial(ctx, tasks)
	} else {
		err = b.runConcurrent(ctx, tasks)
	}

	p.mu.Lock()
	p.report = b.failures
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return b.ordered(), nil
}

// execute runs one task on the calling goroutine and recovers panics.
func (p *Pool) execute(w *work) (out outcome) {
	out.work = w
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
		out.duration = time.Since(start)
		p.recorder.ObserveTaskDuration(string(p.kind), out.duration)
	}()
	if w.task.IsMap() && p.kind != Serial {
		out.value, out.err = p.runMap(w.ctx, w.task)
		return out
	}
	out.value, out.err = w.task.Run(w.ctx)
	return out
}

// runMap fans the items of a map task out across at most size goroutines.
func (p *Pool) runMap(ctx context.Context, t *task.Task) (any, error) {
	items := t.Items()
	fn := t.MapFunc()
	results := make([]any, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)
	for i, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: item %d: %v", ErrPanic, i, r)
				}
			}()
			v, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
