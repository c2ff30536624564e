package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	RunFlags `embed:""`

	Interval    time.Duration `help:"Time between scheduled builds" default:"10m"`
	MetricsAddr string        `name:"metrics-addr" help:"Listen address for /metrics and /healthz (empty disables)" default:":9464"`
	Hashed      bool          `help:"Use the dependency fingerprint database" default:"true" negatable:""`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	daemon, err := NewDaemon(DaemonOptions{
		Interval:    d.Interval,
		MetricsAddr: d.MetricsAddr,
		Logger:      g.logger(),
		Build: func(ctx context.Context, rec metrics.Recorder) (*BuildResult, error) {
			conf, err := root.loadConfig(d.Runstate())
			if err != nil {
				return nil, err
			}
			return RunBuild(ctx, conf, BuildOptions{Logger: g.logger(), Recorder: rec, Hashed: d.Hashed})
		},
	})
	if err != nil {
		return err
	}
	return daemon.Run(ctx)
}

// BuildFunc runs one build reporting to rec.
type BuildFunc func(ctx context.Context, rec metrics.Recorder) (*BuildResult, error)

// DaemonOptions configure a Daemon.
type DaemonOptions struct {
	Interval    time.Duration
	MetricsAddr string
	Logger      *slog.Logger
	Build       BuildFunc
}

// Daemon rebuilds on a fixed interval and exposes Prometheus metrics.
type Daemon struct {
	opts      DaemonOptions
	registry  *prom.Registry
	recorder  *metrics.PrometheusRecorder
	scheduler gocron.Scheduler

	mu       sync.Mutex
	builds   int
	lastErr  error
	lastDone time.Time
}

// NewDaemon validates opts and creates the scheduler.
func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	if opts.Build == nil {
		return nil, ferrors.ValidationError("daemon needs a build function").Build()
	}
	if opts.Interval <= 0 {
		return nil, ferrors.ValidationError(fmt.Sprintf("invalid build interval %s", opts.Interval)).Build()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create scheduler").Build()
	}
	reg := prom.NewRegistry()
	return &Daemon{
		opts:      opts,
		registry:  reg,
		recorder:  metrics.NewPrometheusRecorder(reg),
		scheduler: s,
	}, nil
}

// Handler serves /metrics and /healthz.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		d.mu.Lock()
		builds, lastErr, lastDone := d.builds, d.lastErr, d.lastDone
		d.mu.Unlock()
		if lastErr != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "last build failed: %v\n", lastErr)
			return
		}
		if builds == 0 {
			_, _ = fmt.Fprintln(w, "ok (no build finished yet)")
			return
		}
		_, _ = fmt.Fprintf(w, "ok (%d builds, last at %s)\n", builds, lastDone.Format(time.RFC3339))
	})
	return mux
}

// Run schedules builds, starting with one immediately, and serves metrics
// until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	_, err := d.scheduler.NewJob(
		gocron.DurationJob(d.opts.Interval),
		gocron.NewTask(func() { d.build(ctx) }),
		gocron.WithName("content-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to schedule builds").Build()
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if d.opts.MetricsAddr != "" {
		srv = &http.Server{Addr: d.opts.MetricsAddr, Handler: d.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		d.opts.Logger.Info("Serving metrics", slog.String("addr", d.opts.MetricsAddr))
	}

	d.opts.Logger.Info("Starting scheduler", logfields.ScheduleName("content-build"), slog.Duration("interval", d.opts.Interval))
	d.scheduler.Start()

	var runErr error
	select {
	case <-ctx.Done():
		d.opts.Logger.Info("Shutdown signal received, stopping daemon")
	case err := <-errCh:
		runErr = ferrors.WrapError(err, ferrors.CategoryRuntime, "metrics server failed").Build()
	}

	if err := d.scheduler.Shutdown(); err != nil {
		d.opts.Logger.Warn("Failed to stop scheduler", logfields.Error(err))
	}
	if srv != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			d.opts.Logger.Warn("Failed to stop metrics server", logfields.Error(err))
		}
	}
	return runErr
}

func (d *Daemon) build(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := d.opts.Build(ctx, d.recorder)

	d.mu.Lock()
	d.builds++
	d.lastErr = err
	d.lastDone = time.Now()
	d.mu.Unlock()

	if err != nil {
		d.opts.Logger.Error("Scheduled build failed", logfields.ScheduleName("content-build"), logfields.Error(err))
		return
	}
	d.opts.Logger.Info("Scheduled build completed",
		logfields.ScheduleName("content-build"),
		logfields.RunID(res.RunID),
		logfields.Count(res.Outputs))
}

// Builds returns the number of finished builds and the last error.
func (d *Daemon) Builds() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.builds, d.lastErr
}
