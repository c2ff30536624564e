package commands

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/content"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	RunFlags `embed:""`

	Hashed   bool          `help:"Use the dependency fingerprint database"`
	Debounce time.Duration `help:"Quiet period before a rebuild starts" default:"500ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := root.loadConfig(w.Runstate())
	if err != nil {
		return err
	}
	dirs, ignore := watchTargets(conf, root.Config)
	watcher, err := NewWatcher(dirs, ignore, w.Debounce, g.logger())
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	build := func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			g.logger().Info("Sources changed, rebuilding", logfields.Count(len(changed)))
		}
		conf, err := root.loadConfig(w.Runstate())
		if err != nil {
			return err
		}
		_, err = RunBuild(ctx, conf, BuildOptions{Logger: g.logger(), Hashed: w.Hashed})
		return err
	}
	if err := build(ctx, nil); err != nil {
		g.logger().Error("Initial build failed", logfields.Error(err))
	}
	return watcher.Run(ctx, build)
}

// watchTargets returns the content source directories plus the configuration
// directory, and the output directories whose events are ignored.
func watchTargets(conf *config.Configuration, confPath string) (dirs, ignore []string) {
	content.Register(conf, content.Options{})
	for _, ct := range conf.System().Content().Types() {
		if !slices.Contains(dirs, ct.Dir) {
			dirs = append(dirs, ct.Dir)
		}
		ignore = append(ignore, ct.OutputDir)
	}
	if confPath == "" {
		confPath = conf.Runstate().ConfPath()
	}
	if confPath != "" {
		if dir, err := filepath.Abs(filepath.Dir(confPath)); err == nil && !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, ignore
}

// Watcher reports batches of changed source files after a quiet period.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger
}

// NewWatcher watches dirs and their subdirectories. Missing directories are
// skipped; paths under ignore never trigger a rebuild.
func NewWatcher(dirs, ignore []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	w := &Watcher{fs: fw, debounce: debounce, ignore: ignore, logger: logger}
	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch "+root).Build()
	}
	w.logger.Debug("Watching directory tree", logfields.Path(root))
	return nil
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// relevant reports whether ev touches a source document.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || w.ignored(ev.Name) {
		return false
	}
	switch filepath.Ext(base) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

// Run calls onChange with the sorted changed paths once no event arrived
// for the debounce period. Errors from onChange are logged. Run returns
// when ctx is done.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context, []string) error) error {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = map[string]bool{}
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && !w.ignored(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
				}
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("Source change detected", logfields.File(ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			slices.Sort(changed)
			if err := onChange(ctx, changed); err != nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error { return w.fs.Close() }
