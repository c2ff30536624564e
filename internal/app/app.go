// Package app organizes tasks into an ordered build: consecutive tasks run
// together as one pool batch, while sub-apps run in isolation once the
// preceding batch has finished.
package app

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/pool"
	"git.home.luguber.info/inful/docweave/internal/task"
)

// Option configures an App.
type Option func(*App)

// WithPool selects the kind and size of the pool created on first run.
func WithPool(kind pool.Kind, size int) Option {
	return func(a *App) {
		a.kind = kind
		a.size = size
	}
}

// WithForce marks every added task as forced.
func WithForce(force bool) Option {
	return func(a *App) { a.force = force }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(a *App) {
		if r != nil {
			a.recorder = r
		}
	}
}

type entry struct {
	task *task.Task
	app  *App
}

// App is a queue of tasks and sub-apps. Apps are reusable: Run empties the
// queue but results accumulate until Reset.
type App struct {
	kind      pool.Kind
	size      int
	force     bool
	randomize bool
	root      bool

	logger   *slog.Logger
	recorder metrics.Recorder

	pool     *pool.Pool
	ownsPool bool

	queue   []entry
	results []any
	runID   string
}

// New returns a root app. Without WithPool it uses a process pool.
func New(opts ...Option) *App {
	a := &App{
		kind:     pool.Process,
		root:     true,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FromConfig returns a root app using the runner, pool size and force flag
// of the configuration's runstate.
func FromConfig(conf *config.Configuration, opts ...Option) (*App, error) {
	rs := conf.Runstate()
	kind, err := pool.ParseKind(rs.Runner())
	if err != nil {
		return nil, err
	}
	base := []Option{WithPool(kind, rs.PoolSize()), WithForce(rs.Force())}
	a := New(append(base, opts...)...)
	a.randomize = rs.Randomize()
	return a, nil
}

// Add appends t to the queue and returns it.
func (a *App) Add(t *task.Task) *task.Task {
	if a.force {
		t.Force = true
	}
	a.queue = append(a.queue, entry{task: t})
	return t
}

// AddTask appends a new task running job.
func (a *App) AddTask(job task.Job, args task.Args) *task.Task {
	return a.Add(task.New(job, args))
}

// AddMapTask appends a new map task.
func (a *App) AddMapTask(fn task.MapFunc, items []any) *task.Task {
	return a.Add(task.NewMapTask(fn, items))
}

// ExtendQueue appends every task.
func (a *App) ExtendQueue(tasks ...*task.Task) {
	for _, t := range tasks {
		a.Add(t)
	}
}

// SubApp appends a new sub-app and returns it.
func (a *App) SubApp() *App {
	sub := &App{
		kind:     a.kind,
		size:     a.size,
		force:    a.force,
		logger:   a.logger,
		recorder: a.recorder,
	}
	a.queue = append(a.queue, entry{app: sub})
	return sub
}

// AddGroup appends tasks as a sub-app so they run isolated from the tasks
// around them. An empty group adds nothing and returns nil.
func (a *App) AddGroup(tasks []*task.Task) *App {
	if len(tasks) == 0 {
		return nil
	}
	sub := a.SubApp()
	sub.ExtendQueue(tasks...)
	return sub
}

// Randomize shuffles each batch before it runs.
func (a *App) Randomize(on bool) { a.randomize = on }

// Len returns the number of queued entries.
func (a *App) Len() int { return len(a.queue) }

// Results returns the results of every run since the last Reset.
func (a *App) Results() []any { return append([]any(nil), a.results...) }

// RunID identifies the most recent run of a root app.
func (a *App) RunID() string { return a.runID }

// Reset clears the queue, the results and randomization.
func (a *App) Reset() {
	a.queue = nil
	a.results = nil
	a.randomize = false
}

// Close closes the pool if this app created it.
func (a *App) Close() error {
	if a.pool == nil || !a.ownsPool {
		return nil
	}
	err := a.pool.Close()
	a.pool = nil
	return err
}

// Run executes the queue and returns the accumulated results. It stops at
// the first failing batch.
func (a *App) Run(ctx context.Context) ([]any, error) {
	if !a.root {
		return a.run(ctx)
	}
	a.runID = uuid.NewString()
	logger := a.logger.With(logfields.RunID(a.runID))
	start := time.Now()

	if err := a.ensurePool(logger); err != nil {
		return nil, err
	}
	results, err := a.withLogger(logger).run(ctx)

	a.recorder.ObserveRunDuration(time.Since(start))
	outcome := "success"
	switch {
	case ctx.Err() != nil:
		outcome = "canceled"
	case err != nil:
		outcome = "failed"
	}
	a.recorder.IncRunOutcome(outcome)
	logger.Info("Build run finished",
		slog.String("outcome", outcome),
		logfields.Count(len(results)),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return results, err
}

// withLogger points the app and its sub-apps at l for one run.
func (a *App) withLogger(l *slog.Logger) *App {
	a.logger = l
	for _, e := range a.queue {
		if e.app != nil {
			e.app.withLogger(l)
		}
	}
	return a
}

func (a *App) ensurePool(logger *slog.Logger) error {
	if a.pool != nil {
		return nil
	}
	p, err := pool.New(a.kind, a.size, pool.WithLogger(logger), pool.WithRecorder(a.recorder))
	if err != nil {
		return err
	}
	a.pool = p
	a.ownsPool = true
	return nil
}

func (a *App) clean() {
	kept := a.queue[:0]
	for _, e := range a.queue {
		if e.app != nil {
			if len(e.app.queue) == 0 {
				a.logger.Warn("Dropping empty sub-app from queue")
				continue
			}
			e.app.pool = a.pool
		}
		kept = append(kept, e)
	}
	a.queue = kept
}

func (a *App) run(ctx context.Context) ([]any, error) {
	defer func() { a.queue = nil }()
	a.clean()

	var group []*task.Task
	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		if a.randomize {
			rand.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		}
		res, err := a.pool.Runner(ctx, group)
		group = nil
		if err != nil {
			return err
		}
		a.results = append(a.results, res...)
		return nil
	}

	for _, e := range a.queue {
		if e.task != nil {
			group = append(group, e.task)
			continue
		}
		if err := flush(); err != nil {
			return a.Results(), err
		}
		res, err := e.app.run(ctx)
		a.results = append(a.results, res...)
		if err != nil {
			return a.Results(), err
		}
	}
	if err := flush(); err != nil {
		return a.Results(), err
	}
	return a.Results(), nil
}
