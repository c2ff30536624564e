package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/internal/config"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Global is shared state passed to every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (discovered from the working directory when empty)" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Generate content from structured YAML sources"`
	Conf    ConfigCmd  `cmd:"" name:"config" help:"Print the resolved configuration with secrets redacted"`
	Init    InitCmd    `cmd:"" help:"Initialize a new project configuration"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever content sources change"`
	Daemon  DaemonCmd  `cmd:"" help:"Rebuild on a schedule and serve Prometheus metrics"`
	Info    VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel prefers --verbose, then DOCWEAVE_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("DOCWEAVE_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RunFlags map command-line switches onto the runstate section.
type RunFlags struct {
	Runner       string `help:"Worker pool kind (process, thread, event, serial)"`
	PoolSize     int    `name:"pool-size" short:"j" help:"Number of concurrent workers"`
	Serial       bool   `help:"Run every task in the calling goroutine"`
	Force        bool   `short:"f" help:"Rebuild every target regardless of staleness"`
	DryRun       bool   `name:"dry-run" short:"n" help:"Resolve and render content without writing output"`
	IgnoreErrors bool   `name:"ignore-errors" help:"Log task failures and keep going"`
	Randomize    bool   `help:"Shuffle tasks within each batch"`
	Edition      string `short:"e" help:"Edition to build"`
	Language     string `short:"l" help:"Language to build"`
	Branch       string `help:"Override the current git branch"`
}

// Runstate returns the runstate overrides for the flags that were set.
func (f RunFlags) Runstate() map[string]any {
	rs := map[string]any{}
	set := func(name string, on bool, v any) {
		if on {
			rs[name] = v
		}
	}
	set("runner", f.Runner != "", f.Runner)
	set("pool_size", f.PoolSize > 0, f.PoolSize)
	set("serial", f.Serial, true)
	set("force", f.Force, true)
	set("dry_run", f.DryRun, true)
	set("ignore_errors", f.IgnoreErrors, true)
	set("randomize", f.Randomize, true)
	set("edition", f.Edition != "", f.Edition)
	set("language", f.Language != "", f.Language)
	set("git_branch", f.Branch != "", f.Branch)
	return rs
}

// confPath returns the configured path or discovers one from the working directory.
func (c *CLI) confPath() (string, error) {
	if c.Config != "" {
		return c.Config, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := config.Discover(wd)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryNotFound, "no project configuration found").
			WithContext("dir", wd).
			Build()
	}
	return path, nil
}

// loadConfig loads the project configuration with runstate overrides.
func (c *CLI) loadConfig(runstate map[string]any) (*config.Configuration, error) {
	path, err := c.confPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path, runstate)
}
