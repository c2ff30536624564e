package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestNeedsRebuild(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	src := filepath.Join(dir, "src.yaml")
	out := filepath.Join(dir, "out.rst")
	out2 := filepath.Join(dir, "out2.rst")
	touch(t, src, now.Add(-2*time.Hour))
	touch(t, out, now.Add(-time.Hour))
	touch(t, out2, now.Add(-3*time.Hour))

	cases := []struct {
		name string
		task *Task
		want bool
	}{
		{"no target", &Task{Dependency: []string{src}}, true},
		{"no dependency", &Task{Target: []string{out}}, true},
		{"forced", &Task{Target: []string{out}, Dependency: []string{src}, Force: true}, true},
		{"fresh", &Task{Target: []string{out}, Dependency: []string{src}}, false},
		{"missing target", &Task{Target: []string{out, filepath.Join(dir, "nope")}, Dependency: []string{src}}, true},
		{"missing dependency", &Task{Target: []string{out}, Dependency: []string{src, filepath.Join(dir, "gone")}}, true},
		{"dependency newer than oldest target", &Task{Target: []string{out, out2}, Dependency: []string{src}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.task.NeedsRebuild())
		})
	}
}

func TestNeedsRebuildIsEvaluatedEachCall(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.yaml")
	out := filepath.Join(dir, "out.rst")
	touch(t, src, time.Now().Add(-time.Hour))
	touch(t, out, time.Now())

	task := &Task{Target: []string{out}, Dependency: []string{src}}
	require.False(t, task.NeedsRebuild())

	touch(t, src, time.Now().Add(time.Hour))
	require.True(t, task.NeedsRebuild())
}

type staticChecker bool

func (c staticChecker) Stale(_, _ []string) bool { return bool(c) }

func TestCustomChecker(t *testing.T) {
	task := &Task{Target: []string{"a"}, Dependency: []string{"b"}, Checker: staticChecker(false)}
	require.False(t, task.NeedsRebuild())
}

func TestRunPassesArguments(t *testing.T) {
	sum := Variadic(func(args ...any) (any, error) {
		total := 0
		for _, a := range args {
			total += a.(int)
		}
		return total, nil
	})
	v, err := New(sum, Positional(1, 2, 3)).Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, 6, v)

	greet := Keywords(func(kw map[string]any) (any, error) {
		return "hello " + kw["name"].(string), nil
	})
	v, err = New(greet, Keyword(map[string]any{"name": "docs"})).Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, "hello docs", v)

	_, err = New(greet, Positional(1)).Run(t.Context())
	require.ErrorIs(t, err, ErrArgs)
}

func TestRunReturnsJobErrorUnchanged(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(func(context.Context, Args) (any, error) { return nil, boom }, Args{}).Run(t.Context())
	require.Same(t, boom, err)
}

func TestRunWithoutJob(t *testing.T) {
	_, err := (&Task{Description: "empty"}).Run(t.Context())
	require.ErrorIs(t, err, ErrNoJob)
}

func TestMapTask(t *testing.T) {
	double := func(_ context.Context, item any) (any, error) { return item.(int) * 2, nil }
	mt := NewMapTask(double, []any{1, 2, 3})
	require.True(t, mt.IsMap())

	v, err := mt.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, []any{2, 4, 6}, v)
}

func TestFinalizeOrder(t *testing.T) {
	var order []string
	step := func(name string) *Task {
		return New(func(context.Context, Args) (any, error) {
			order = append(order, name)
			return name, nil
		}, Args{})
	}

	root := step("root")
	a := root.AddFinalizer(step("a"))
	a.AddFinalizer(step("a.1"))
	root.SetFinal(step("final"))
	root.AddFinalizer(step("b"))

	results, err := root.Finalize(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "a.1", "b", "final"}, order)
	require.Equal(t, []any{"a", "a.1", "b", "final"}, results)
	require.Len(t, root.Finalizers(), 2)
	require.NotNil(t, root.Final())
}

func TestFinalizeStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	root := New(func(context.Context, Args) (any, error) { return nil, nil }, Args{})
	root.AddFinalizer(New(func(context.Context, Args) (any, error) { return nil, boom }, Args{}))
	root.SetFinal(New(func(context.Context, Args) (any, error) { ran = true; return nil, nil }, Args{}))

	_, err := root.Finalize(t.Context())
	require.ErrorIs(t, err, boom)
	require.False(t, ran)
}
