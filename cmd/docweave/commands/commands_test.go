package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/depcache"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/task"
)

// run parses args and executes the selected command, returning its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docweave"),
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Out: &out}, cli)
	return out.String(), err
}

// newProject initializes a project and writes one steps source file.
func newProject(t *testing.T) (conf string, includes string) {
	t.Helper()
	root := t.TempDir()
	path, err := config.Init(root, false)
	require.NoError(t, err)

	c, err := config.Load(path, map[string]any{"git_branch": "master"})
	require.NoError(t, err)
	includes = c.Paths().Abs(c.Paths().BranchIncludes())
	require.NoError(t, os.MkdirAll(includes, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(includes, "steps-install.yaml"), []byte(
		"ref: download\ntitle: Download {{version}}\nreplacement:\n  version: \"3.0\"\n---\nref: extract\ntitle: Extract\n"), 0o600))
	return path, includes
}

func TestBuildCommandWritesOutputs(t *testing.T) {
	conf, includes := newProject(t)

	out, err := run(t, "-c", conf, "build", "--branch", "master", "--serial")
	require.NoError(t, err)
	require.Contains(t, out, "1 tasks, 1 outputs")

	data, err := os.ReadFile(filepath.Join(includes, "steps", "install.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "Download 3.0")

	// A second build finds the target current.
	out, err = run(t, "-c", conf, "build", "--branch", "master", "--serial")
	require.NoError(t, err)
	require.Contains(t, out, "1 tasks, 0 outputs")
}

func TestBuildDryRun(t *testing.T) {
	conf, includes := newProject(t)

	_, err := run(t, "-c", conf, "build", "--branch", "master", "--dry-run", "-j", "2", "--runner", "thread")
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(includes, "steps", "install.yaml"))
}

func TestBuildHashedRecordsDependencies(t *testing.T) {
	confPath, includes := newProject(t)
	conf, err := config.Load(confPath, map[string]any{"git_branch": "master", "serial": true})
	require.NoError(t, err)

	res, err := RunBuild(t.Context(), conf, BuildOptions{Hashed: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Outputs)
	require.NotEmpty(t, res.RunID)

	store, err := depcache.Open(conf.Paths().FileChangesDatabase())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	_, known, err := store.Lookup(t.Context(),
		filepath.Join(includes, "steps", "install.yaml"),
		filepath.Join(includes, "steps-install.yaml"))
	require.NoError(t, err)
	require.True(t, known)
}

func TestBuildWarnsAboutUnknownEdition(t *testing.T) {
	confPath, _ := newProject(t)
	conf, err := config.Load(confPath, map[string]any{"git_branch": "master", "serial": true, "edition": "nope"})
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	_, err = RunBuild(t.Context(), conf, BuildOptions{Logger: logger})
	require.NoError(t, err)
	require.Contains(t, logs.String(), "Unknown edition")
	require.Contains(t, logs.String(), "edition=nope")
}

func TestBuiltTasksExcludesFailedAndSkipped(t *testing.T) {
	built := &task.Task{Target: []string{"a.yaml"}, Dependency: []string{"a-src.yaml", "base.yaml"}}
	failed := &task.Task{Target: []string{"b.yaml"}, Dependency: []string{"b-src.yaml", "base.yaml"}}
	skipped := &task.Task{Target: []string{"c.yaml"}, Dependency: []string{"c-src.yaml"}}

	got := builtTasks([]*task.Task{built, failed, skipped}, []any{"a.yaml", nil})
	require.Equal(t, []*task.Task{built}, got)
}

func TestBuildFailureIsClassified(t *testing.T) {
	conf, includes := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(includes, "steps-broken.yaml"), []byte(
		"ref: a\nsource:\n  file: steps-missing.yaml\n  ref: b\n"), 0o600))

	_, err := run(t, "-c", conf, "build", "--branch", "master")
	require.Error(t, err)
	require.NotZero(t, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestConfigCommandRedacts(t *testing.T) {
	conf, _ := newProject(t)
	require.NoError(t, os.WriteFile(conf, append(mustRead(t, conf), []byte("version:\n  token: hunter2\n")...), 0o600))

	out, err := run(t, "-c", conf, "config", "--branch", "master")
	require.NoError(t, err)
	require.Contains(t, out, "token: redacted")
	require.NotContains(t, out, "hunter2")

	out, err = run(t, "-c", conf, "config", "--unredacted", "-F", "json")
	require.NoError(t, err)
	require.Contains(t, out, `"token": "hunter2"`)
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "init", dir)
	require.NoError(t, err)
	require.Contains(t, out, filepath.Join(dir, "config", config.ConfFileName))

	_, err = run(t, "init", dir)
	require.Error(t, err)
	_, err = run(t, "init", "--force", dir)
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "docweave ")
}

func TestRunFlagsRunstate(t *testing.T) {
	require.Empty(t, RunFlags{}.Runstate())
	rs := RunFlags{Runner: "thread", PoolSize: 4, Force: true, Edition: "saas", Branch: "v3.0"}.Runstate()
	require.Equal(t, map[string]any{
		"runner":     "thread",
		"pool_size":  4,
		"force":      true,
		"edition":    "saas",
		"git_branch": "v3.0",
	}, rs)
}

func TestWatchTargetsIgnoreOutputDirs(t *testing.T) {
	confPath, includes := newProject(t)
	conf, err := config.Load(confPath, map[string]any{"git_branch": "master"})
	require.NoError(t, err)

	dirs, ignore := watchTargets(conf, confPath)
	require.Contains(t, dirs, includes)
	require.Contains(t, dirs, filepath.Dir(confPath))
	require.Contains(t, ignore, filepath.Join(includes, "steps"))
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "steps")
	require.NoError(t, os.MkdirAll(out, 0o750))

	w, err := NewWatcher([]string{dir, filepath.Join(dir, "missing")}, []string{out}, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	var (
		mu    sync.Mutex
		calls [][]string
	)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, changed)
			return errors.New("ignored")
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(out, "install.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	src := filepath.Join(dir, "steps-install.yaml")
	for i := range 3 {
		require.NoError(t, os.WriteFile(src, []byte{byte('a' + i)}, 0o600))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{src}, calls[0])
}

func TestDaemonServesHealthAndMetrics(t *testing.T) {
	d, err := NewDaemon(DaemonOptions{
		Interval: time.Hour,
		Build: func(_ context.Context, rec metrics.Recorder) (*BuildResult, error) {
			rec.IncRunOutcome("success")
			return &BuildResult{RunID: "r1", Outputs: 1}, nil
		},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	require.Eventually(t, func() bool {
		n, _ := d.Builds()
		return n == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, lastErr := d.Builds()
	require.NoError(t, lastErr)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewDaemonValidates(t *testing.T) {
	_, err := NewDaemon(DaemonOptions{Interval: time.Minute})
	require.Error(t, err)
	_, err = NewDaemon(DaemonOptions{Build: func(context.Context, metrics.Recorder) (*BuildResult, error) { return nil, nil }})
	require.Error(t, err)
}
