package depcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/task"
)

func writeAt(t *testing.T, path, body string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndLookup(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "cache", "deps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	dep := filepath.Join(dir, "dep.yaml")
	out := filepath.Join(dir, "out.yaml")
	writeAt(t, dep, "a: 1\n", time.Now())
	require.NoError(t, s.Record(t.Context(), out, dep))

	e, ok, err := s.Lookup(t.Context(), out, dep)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, out, e.Target)
	fp, err := Fingerprint(dep)
	require.NoError(t, err)
	require.Equal(t, fp, e.Fingerprint)

	_, ok, err = s.Lookup(t.Context(), filepath.Join(dir, "other.yaml"), dep)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.Remove(dep))
	require.NoError(t, s.Record(t.Context(), out, dep))
	_, ok, err = s.Lookup(t.Context(), out, dep)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordUpserts(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t)

	dep := filepath.Join(dir, "dep.yaml")
	writeAt(t, dep, "a: 1\n", time.Now())
	require.NoError(t, s.Record(t.Context(), "a.out", dep))
	writeAt(t, dep, "a: 2\n", time.Now())
	require.NoError(t, s.Record(t.Context(), "a.out", dep))
	require.NoError(t, s.Record(t.Context(), "b.out", dep))

	n, err := s.Len(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, s.Forget(t.Context(), "a.out"))
	n, err = s.Len(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHashCheckerIgnoresTouchedDependency(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t)

	now := time.Now()
	dep := filepath.Join(dir, "dep.yaml")
	out := filepath.Join(dir, "out.rst")
	writeAt(t, dep, "a: 1\n", now.Add(-2*time.Hour))
	writeAt(t, out, "x", now.Add(-time.Hour))
	require.NoError(t, s.Record(t.Context(), out, dep))

	tk := &task.Task{Target: []string{out}, Dependency: []string{dep}, Checker: HashChecker{Store: s}}
	require.False(t, tk.NeedsRebuild())

	// Same bytes, newer mtime.
	writeAt(t, dep, "a: 1\n", now)
	require.False(t, tk.NeedsRebuild())
	require.True(t, (&task.Task{Target: tk.Target, Dependency: tk.Dependency}).NeedsRebuild())

	writeAt(t, dep, "a: 2\n", now.Add(-3*time.Hour))
	require.True(t, tk.NeedsRebuild())
}

func TestHashCheckerFallsBackToMtime(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t)

	now := time.Now()
	dep := filepath.Join(dir, "dep.yaml")
	out := filepath.Join(dir, "out.rst")
	writeAt(t, out, "x", now.Add(-time.Hour))
	writeAt(t, dep, "a: 1\n", now.Add(-2*time.Hour))

	c := HashChecker{Store: s}
	require.False(t, c.Stale([]string{out}, []string{dep}))
	writeAt(t, dep, "a: 1\n", now)
	require.True(t, c.Stale([]string{out}, []string{dep}))
	require.True(t, c.Stale([]string{filepath.Join(dir, "missing")}, []string{dep}))
}

func TestSharedDependencyRebuiltForEveryTarget(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t)
	c := HashChecker{Store: s}

	now := time.Now()
	base := filepath.Join(dir, "base.yaml")
	aOut := filepath.Join(dir, "a.out")
	bOut := filepath.Join(dir, "b.out")
	writeAt(t, base, "a: 1\n", now.Add(-3*time.Hour))
	writeAt(t, aOut, "x", now.Add(-2*time.Hour))
	writeAt(t, bOut, "x", now.Add(-2*time.Hour))
	require.NoError(t, s.Record(t.Context(), aOut, base))
	require.NoError(t, s.Record(t.Context(), bOut, base))

	// base changes; only a is rebuilt from it.
	writeAt(t, base, "a: 2\n", now.Add(-time.Hour))
	writeAt(t, aOut, "y", now)
	require.NoError(t, s.Record(t.Context(), aOut, base))

	require.False(t, c.Stale([]string{aOut}, []string{base}))
	require.True(t, c.Stale([]string{bOut}, []string{base}))

	// A target never recorded against base falls back to mtimes.
	cOut := filepath.Join(dir, "c.out")
	writeAt(t, cOut, "x", now.Add(-2*time.Hour))
	require.True(t, c.Stale([]string{cOut}, []string{base}))
}
