package content

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/config"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/inheritance"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/task"
)

// Options configure the generated tasks.
type Options struct {
	// Renderer defaults to YAMLRenderer.
	Renderer Renderer
	// Checker decides staleness; nil leaves the task default (modification times).
	Checker task.Checker
	Logger  *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Renderer == nil {
		o.Renderer = YAMLRenderer{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Register adds every built-in kind to the configuration's content
// registry. Kinds registered earlier under the same name are kept.
func Register(conf *config.Configuration, opts Options) {
	opts = opts.withDefaults()
	reg := conf.System().Content()
	for _, kind := range Kinds {
		ct := config.NewContentType(kind.Name, conf, generator(kind, opts), "", "")
		if !reg.Add(ct) {
			opts.Logger.Debug("Content type already registered", logfields.ContentType(kind.Name))
		}
	}
}

// Tasks generates the tasks of every registered content type in
// registration order.
func Tasks(conf *config.Configuration) ([]*task.Task, error) {
	var out []*task.Task
	for _, ct := range conf.System().Content().Types() {
		if ct.Generator == nil {
			continue
		}
		tasks, err := ct.Generator(conf, ct)
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	return out, nil
}

// NewCache builds an inheritance cache for kind whose references resolve
// against the project root and the branch include and source directories.
func NewCache(conf *config.Configuration, kind *inheritance.Kind, logger *slog.Logger) *inheritance.Cache {
	paths := conf.Paths()
	edition := ""
	if p := conf.Project(); p.HasEdition() {
		edition = p.Edition()
	}
	return inheritance.NewCache(kind, inheritance.Options{
		Root: conf.Node(),
		SearchDirs: []string{
			paths.ProjectRoot(),
			paths.Abs(paths.BranchIncludes()),
			paths.Abs(paths.BranchSource()),
		},
		Edition: edition,
		Logger:  logger,
	})
}

func generator(kind *inheritance.Kind, opts Options) config.TaskGenerator {
	return func(conf *config.Configuration, ct *config.ContentType) ([]*task.Task, error) {
		sources, err := ct.Sources()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot list "+ct.Name+" sources").
				WithContext("dir", ct.Dir).
				Build()
		}
		if len(sources) == 0 {
			return nil, nil
		}

		cache := NewCache(conf, kind, opts.Logger)
		if err := cache.Ingest(sources...); err != nil {
			return nil, err
		}
		if err := cache.ResolveAll(); err != nil {
			return nil, err
		}

		rs := conf.Runstate()
		tasks := make([]*task.Task, 0, len(sources))
		for _, src := range sources {
			f, ok := cache.File(src)
			if !ok {
				continue
			}
			target := filepath.Join(ct.OutputDir, ct.Basename(src)+opts.Renderer.Ext())
			t := task.New(renderJob(f, target, kind.Name, opts, rs.DryRun()), task.Args{})
			t.Target = []string{target}
			t.Dependency = dependencies(f)
			t.Description = "generate " + kind.Name + " for " + src
			t.Force = rs.Force()
			t.IgnoreErrors = rs.IgnoreErrors()
			if opts.Checker != nil {
				t.Checker = opts.Checker
			}
			tasks = append(tasks, t)
		}
		opts.Logger.Debug("Generated content tasks",
			logfields.ContentType(kind.Name),
			logfields.Count(len(tasks)))
		return tasks, nil
	}
}

// dependencies lists the source file followed by every file its units
// inherit from.
func dependencies(f *inheritance.File) []string {
	deps := []string{f.Path()}
	for _, u := range f.Units() {
		for _, inherited := range u.InheritedFiles() {
			if !slices.Contains(deps, inherited) {
				deps = append(deps, inherited)
			}
		}
	}
	return deps
}

func renderJob(f *inheritance.File, target, kind string, opts Options, dryRun bool) task.Job {
	return func(ctx context.Context, _ task.Args) (any, error) {
		units := make([]map[string]any, 0, f.Len())
		for _, u := range f.Ordered() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if strings.HasPrefix(u.Ref(), "_") {
				continue
			}
			if err := u.Render(); err != nil {
				return nil, err
			}
			doc, err := u.Dict()
			if err != nil {
				return nil, err
			}
			units = append(units, doc)
		}
		if dryRun {
			opts.Logger.Info("Dry run: skipping write",
				logfields.ContentType(kind),
				logfields.Path(target),
				logfields.Count(len(units)))
			return target, nil
		}
		if err := writeRendered(target, opts.Renderer, kind, units); err != nil {
			return nil, err
		}
		return target, nil
	}
}
