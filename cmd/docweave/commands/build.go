package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docweave/internal/app"
	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/content"
	"git.home.luguber.info/inful/docweave/internal/depcache"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/task"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	RunFlags `embed:""`

	Hashed      bool   `help:"Skip targets whose dependencies have unchanged content even if their modification time moved"`
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics for this build to a textfile" type:"path"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := root.loadConfig(b.Runstate())
	if err != nil {
		return err
	}

	opts := BuildOptions{Logger: g.logger(), Hashed: b.Hashed}
	var exporter *textfileExporter
	if b.MetricsFile != "" {
		exporter = newTextfileExporter(b.MetricsFile)
		opts.Recorder = exporter.recorder
	}

	res, err := RunBuild(ctx, conf, opts)
	if exporter != nil {
		if werr := exporter.write(); werr != nil {
			g.logger().Warn("Failed to write metrics textfile", logfields.Path(b.MetricsFile), logfields.Error(werr))
		}
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Build %s completed: %d tasks, %d outputs\n", res.RunID, res.Tasks, res.Outputs)
	return nil
}

// BuildOptions tune one build run.
type BuildOptions struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
	// Hashed consults and updates the dependency fingerprint database.
	Hashed bool
}

// BuildResult summarizes a finished build.
type BuildResult struct {
	RunID   string
	Tasks   int
	Outputs int
}

// RunBuild registers the built-in content types, generates their tasks and
// runs them on the configured pool.
func RunBuild(ctx context.Context, conf *config.Configuration, opts BuildOptions) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if requested := conf.Runstate().Edition(); requested != "" && requested != conf.Project().Edition() {
		logger.Warn("Unknown edition, building the project without one",
			slog.String("edition", requested),
			slog.Any("available", conf.Project().Editions()))
	}

	var store *depcache.Store
	var checker task.Checker
	if opts.Hashed {
		var err error
		store, err = depcache.Open(conf.Paths().FileChangesDatabase())
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("Failed to close dependency cache", logfields.Error(cerr))
			}
		}()
		checker = depcache.HashChecker{Store: store}
	}

	content.Register(conf, content.Options{Checker: checker, Logger: logger})
	tasks, err := content.Tasks(conf)
	if err != nil {
		return nil, err
	}

	appOpts := []app.Option{app.WithLogger(logger)}
	if opts.Recorder != nil {
		appOpts = append(appOpts, app.WithRecorder(opts.Recorder))
	}
	a, err := app.FromConfig(conf, appOpts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("Failed to close worker pool", logfields.Error(cerr))
		}
	}()

	a.ExtendQueue(tasks...)
	results, err := a.Run(ctx)
	res := &BuildResult{RunID: a.RunID(), Tasks: len(tasks), Outputs: countOutputs(results)}
	if err != nil {
		return res, err
	}

	if store != nil && !conf.Runstate().DryRun() {
		for _, t := range builtTasks(tasks, results) {
			for _, target := range t.Target {
				if err := store.Record(ctx, target, t.Dependency...); err != nil {
					return res, err
				}
			}
		}
	}
	return res, nil
}

func countOutputs(results []any) int {
	n := 0
	for _, r := range results {
		if r != nil {
			n++
		}
	}
	return n
}

// builtTasks lists the tasks whose target appears in results. Skipped and
// failed tasks keep the fingerprints of their previous build.
func builtTasks(tasks []*task.Task, results []any) []*task.Task {
	built := make(map[string]bool, len(results))
	for _, r := range results {
		if s, ok := r.(string); ok {
			built[s] = true
		}
	}
	var out []*task.Task
	for _, t := range tasks {
		if len(t.Target) > 0 && built[t.Target[0]] {
			out = append(out, t)
		}
	}
	return out
}
