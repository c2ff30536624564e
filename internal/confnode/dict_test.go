package confnode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDictRedaction(t *testing.T) {
	schema := NewSchema("creds",
		Field{Name: "user"},
		Field{Name: "password"},
		Field{Name: "api", Redact: true},
		Field{Name: "nested"},
	)
	n := New(schema)
	require.NoError(t, n.Ingest(map[string]any{
		"user":     "ops",
		"password": "secret",
		"api":      "abc",
		"nested":   map[string]any{"token": "t0k", "list": []any{map[string]any{"key": "k"}}},
	}))

	safe := n.Dict(true)
	require.Equal(t, Redacted, safe["password"])
	require.Equal(t, Redacted, safe["api"])
	require.Equal(t, "ops", safe["user"])
	nested := safe["nested"].(map[string]any)
	require.Equal(t, Redacted, nested["token"])
	require.Equal(t, Redacted, nested["list"].([]any)[0].(map[string]any)["key"])

	require.Equal(t, "secret", n.Dict(false)["password"])
	require.Equal(t, "secret", n.StringOr("password", ""))

	again := New(schema)
	require.NoError(t, again.Ingest(safe))
	require.Equal(t, Redacted, again.StringOr("password", ""))
	require.Equal(t, "secret", n.StringOr("password", ""))
}

func TestDictIncludesIDBookkeeping(t *testing.T) {
	n := New(OpenSchema("any", nil))
	require.NoError(t, n.Set("_id", "abc"))
	require.NoError(t, n.Set("_other", "hidden"))
	require.Equal(t, map[string]any{"_id": "abc"}, n.Dict(true))
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range []string{".json", ".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			n := New(projectSchema())
			require.NoError(t, n.Ingest(map[string]any{"name": "manual", "settings": map[string]any{"depth": 2}}))

			path := filepath.Join(dir, "out"+ext)
			require.NoError(t, n.Write(path))

			back := New(projectSchema())
			require.NoError(t, back.Ingest(path))
			require.Equal(t, "manual", back.StringOr("name", ""))
			settings, err := back.Child("settings")
			require.NoError(t, err)
			require.Equal(t, 2, settings.IntOr("depth", 0))
		})
	}
}

func TestWriteJSONLayout(t *testing.T) {
	n := New(OpenSchema("any", nil))
	require.NoError(t, n.Ingest(map[string]any{"b": 1, "a": 2}))
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, n.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\n   \"a\": 2,\n   \"b\": 1\n}\n", string(data))
}

func TestWriteToSourceAndFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0o600))

	n := New(projectSchema())
	require.NoError(t, n.Ingest(path))
	require.NoError(t, n.Set("tag", "v2"))
	require.NoError(t, n.Write(""))

	back := New(projectSchema())
	require.NoError(t, back.Ingest(path))
	require.Equal(t, "v2", back.StringOr("tag", ""))

	require.ErrorIs(t, New(projectSchema()).Write(""), ErrNoPath)
	require.ErrorIs(t, n.Write(filepath.Join(t.TempDir(), "x.ini")), ErrUnsupportedFormat)
}

func TestPersistingCreatesAndWritesBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	schema := OpenSchema("state", nil)

	require.NoError(t, Persisting(t.Context(), path, schema, func(n *Node) error {
		return n.Set("builds", 1)
	}))

	require.NoError(t, Persisting(t.Context(), path, schema, func(n *Node) error {
		require.Equal(t, 1, n.IntOr("builds", 0))
		return n.Set("builds", n.IntOr("builds", 0)+1)
	}))

	back := New(schema)
	require.NoError(t, back.Ingest(path))
	require.Equal(t, 2, back.IntOr("builds", 0))
}

func TestPersistingWritesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	schema := OpenSchema("state", nil)
	boom := errors.New("boom")

	err := Persisting(t.Context(), path, schema, func(n *Node) error {
		require.NoError(t, n.Set("touched", true))
		return boom
	})
	require.ErrorIs(t, err, boom)

	back := New(schema)
	require.NoError(t, back.Ingest(path))
	require.True(t, back.BoolOr("touched", false))
}

func TestPersistingWritesOnPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	schema := OpenSchema("state", nil)

	require.PanicsWithValue(t, "kaput", func() {
		_ = Persisting(t.Context(), path, schema, func(n *Node) error {
			_ = n.Set("touched", true)
			panic("kaput")
		})
	})

	back := New(schema)
	require.NoError(t, back.Ingest(path))
	require.True(t, back.BoolOr("touched", false))
}

func TestPersistingWithFileLockSerializesWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.json")
	schema := OpenSchema("counter", nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Persisting(context.Background(), path, schema, func(n *Node) error {
				return n.Set("count", n.IntOr("count", 0)+1)
			}, WithFileLock(10*time.Second))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	back := New(schema)
	require.NoError(t, back.Ingest(path))
	require.Equal(t, 8, back.IntOr("count", 0))
}
