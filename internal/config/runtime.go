package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

// Runners lists the accepted pool kinds for runstate.runner.
var Runners = []string{"process", "thread", "event", "serial"}

var logLevels = []string{"debug", "info", "warning", "error"}

// RuntimeSchema describes parsed command-line state.
var RuntimeSchema = confnode.NewSchema("runstate",
	confnode.Field{Name: "force", Set: boolSetter, Get: orCompute("force", constant(false))},
	confnode.Field{Name: "serial", Set: boolSetter, Get: orCompute("serial", constant(false))},
	confnode.Field{Name: "dry_run", Set: boolSetter, Get: orCompute("dry_run", constant(false))},
	confnode.Field{Name: "fast", Set: boolSetter, Get: orCompute("fast", constant(false))},
	confnode.Field{Name: "ignore_errors", Set: boolSetter, Get: orCompute("ignore_errors", constant(false))},
	confnode.Field{Name: "level", Set: setLevel, Get: orCompute("level", constant("info"))},
	confnode.Field{Name: "runner", Set: setRunner, Get: orCompute("runner", constant("process"))},
	confnode.Field{Name: "pool_size", Set: setPoolSize, Get: orCompute("pool_size", func(*confnode.Node) (any, error) {
		return runtime.NumCPU(), nil
	})},
	confnode.Field{Name: "language", Set: stringSetter, Get: orCompute("language", constant("en"))},
	confnode.Field{Name: "edition", Set: stringSetter, Get: orCompute("edition", constant(""))},
	confnode.Field{Name: "conf_path", Set: setConfPath},
	strField("git_branch"),
	confnode.Field{Name: "randomize", Set: boolSetter, Get: orCompute("randomize", constant(false))},
	confnode.Field{Name: "builder", Set: listOrScalar},
	confnode.Field{Name: "editions_to_build", Set: listOrScalar},
	confnode.Field{Name: "languages_to_build", Set: listOrScalar},
	confnode.Field{Name: "length"},
	confnode.Field{Name: "days_to_save"},
	confnode.Field{Name: "make_target"},
	confnode.Field{Name: "package_path"},
	confnode.Field{Name: "clean_generated"},
	confnode.Field{Name: "include_mask"},
	confnode.Field{Name: "push_targets"},
	confnode.Field{Name: "port"},
	confnode.Field{Name: "changelog_version"},
)

func setLevel(_ *confnode.Node, v any) (any, error) {
	s, _ := v.(string)
	if !slices.Contains(logLevels, s) {
		return "info", nil
	}
	return s, nil
}

func setRunner(_ *confnode.Node, v any) (any, error) {
	if v == nil {
		return "process", nil
	}
	s, _ := v.(string)
	if !slices.Contains(Runners, s) {
		return nil, fmt.Errorf("%v is not a supported runner type, choose from: %v", v, Runners)
	}
	return s, nil
}

// setPoolSize forces serial execution for a width of one.
func setPoolSize(n *confnode.Node, v any) (any, error) {
	size, ok := confnode.AsInt(v)
	if !ok {
		return nil, fmt.Errorf("pool size must be an integer, got %T", v)
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size %d", size)
	}
	if size == 1 {
		if err := n.Set("serial", true); err != nil {
			return nil, err
		}
	}
	return size, nil
}

func setConfPath(_ *confnode.Node, v any) (any, error) {
	s, _ := v.(string)
	if s == "" {
		return "", nil
	}
	info, err := os.Stat(s)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", s)
	}
	return filepath.Clean(s), nil
}

func listOrScalar(_ *confnode.Node, v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return t, nil
	}
	return []any{v}, nil
}

// Runtime is the typed view of the runstate section.
type Runtime struct{ n *confnode.Node }

func (r Runtime) Node() *confnode.Node { return r.n }
func (r Runtime) Force() bool          { return r.n.BoolOr("force", false) }
func (r Runtime) DryRun() bool         { return r.n.BoolOr("dry_run", false) }
func (r Runtime) IgnoreErrors() bool   { return r.n.BoolOr("ignore_errors", false) }
func (r Runtime) Level() string        { return r.n.StringOr("level", "info") }
func (r Runtime) Language() string     { return r.n.StringOr("language", "en") }
func (r Runtime) Edition() string      { return r.n.StringOr("edition", "") }
func (r Runtime) ConfPath() string     { return r.n.StringOr("conf_path", "") }
func (r Runtime) GitBranch() string    { return r.n.StringOr("git_branch", "") }
func (r Runtime) Randomize() bool      { return r.n.BoolOr("randomize", false) }

// Runner returns the pool kind, "serial" whenever serial mode is on.
func (r Runtime) Runner() string {
	if r.Serial() {
		return "serial"
	}
	return r.n.StringOr("runner", "process")
}

func (r Runtime) Serial() bool { return r.n.BoolOr("serial", false) }

// PoolSize defaults to the number of CPUs.
func (r Runtime) PoolSize() int { return r.n.IntOr("pool_size", runtime.NumCPU()) }
