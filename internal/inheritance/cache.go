package inheritance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docweave/internal/confnode"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// Options configure a Cache.
type Options struct {
	// Root is the configuration every unit resolves global values against.
	Root *confnode.Node
	// SearchDirs are tried, in order, for inherited files that are not loaded yet.
	SearchDirs []string
	// Edition filters documents through the kind's edition check.
	Edition string
	Logger  *slog.Logger
}

// Cache holds every parsed file of one content kind. Each file is parsed at
// most once; inherited files are loaded on first reference.
type Cache struct {
	kind *Kind
	opts Options

	mu    sync.Mutex
	files map[string]*File

	resolveMu sync.Mutex
}

// NewCache returns an empty cache for kind.
func NewCache(kind *Kind, opts Options) *Cache {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache{kind: kind, opts: opts, files: map[string]*File{}}
}

func (c *Cache) Kind() *Kind { return c.kind }

func (c *Cache) root() *confnode.Node { return c.opts.Root }

func (c *Cache) edition() string { return c.opts.Edition }

// Ingest loads each path. Already loaded paths are not parsed again.
func (c *Cache) Ingest(paths ...string) error {
	for _, p := range paths {
		if _, err := c.AddFile(p); err != nil {
			return err
		}
	}
	return nil
}

// AddFile parses path once and returns its File.
func (c *Cache) AddFile(path string) (*File, error) {
	key := filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[key]; ok {
		return f, nil
	}
	f := newFile(key, c.kind, c)
	if err := f.load(); err != nil {
		return nil, err
	}
	c.files[key] = f
	c.opts.Logger.Debug("Loaded content file",
		logfields.ContentType(c.kind.Name),
		logfields.File(key),
		logfields.Count(f.Len()))
	return f, nil
}

// File returns a loaded file without loading it.
func (c *Cache) File(path string) (*File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[filepath.Clean(path)]
	return f, ok
}

// Files returns loaded file paths in lexical order.
func (c *Cache) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.files))
	for k := range c.files {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of loaded files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// locate finds a loaded file by exact path or path suffix, then falls back
// to loading name as given and from each search directory.
func (c *Cache) locate(name string) (*File, error) {
	clean := filepath.Clean(name)
	c.mu.Lock()
	if f, ok := c.files[clean]; ok {
		c.mu.Unlock()
		return f, nil
	}
	var suffixed []string
	for k := range c.files {
		if strings.HasSuffix(k, string(filepath.Separator)+clean) {
			suffixed = append(suffixed, k)
		}
	}
	if len(suffixed) > 0 {
		slices.Sort(suffixed)
		f := c.files[suffixed[0]]
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	candidates := []string{clean}
	if !filepath.IsAbs(clean) {
		for _, dir := range c.opts.SearchDirs {
			candidates = append(candidates, filepath.Join(dir, clean))
		}
	}
	for _, cand := range candidates {
		if st, err := os.Stat(cand); err == nil && !st.IsDir() {
			return c.AddFile(cand)
		}
	}
	return nil, inheritanceError(ErrReferenceNotFound, fmt.Sprintf("content file %s not found", name), name, "")
}

// Fetch returns the resolved unit ref from file, loading file if needed.
func (c *Cache) Fetch(file, ref string) (*Unit, error) {
	f, err := c.locate(file)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ref)
}

// Units returns every unit of every loaded file, files in lexical order.
// Units whose ref starts with "_" only exist to be inherited and are left out.
func (c *Cache) Units() []*Unit {
	var out []*Unit
	for _, path := range c.Files() {
		f, _ := c.File(path)
		for _, u := range f.Units() {
			if strings.HasPrefix(u.ref, "_") {
				continue
			}
			out = append(out, u)
		}
	}
	return out
}

// ResolveAll resolves every unit of every loaded file and reports all failures.
func (c *Cache) ResolveAll() error {
	var errs []error
	for _, path := range c.Files() {
		f, _ := c.File(path)
		if err := f.ResolveAll(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
