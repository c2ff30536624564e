package config

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/docweave/internal/task"
)

// TaskGenerator expands one content type into build tasks.
type TaskGenerator func(conf *Configuration, ct *ContentType) ([]*task.Task, error)

// ContentType names a family of YAML source files under Dir sharing the
// file name prefix Name, and where their rendered output goes.
type ContentType struct {
	Name      string
	Dir       string
	OutputDir string
	Generator TaskGenerator
}

// NewContentType creates a content type rooted at the branch includes
// directory unless sourceDir is given; output defaults to <source>/<name>.
func NewContentType(name string, conf *Configuration, gen TaskGenerator, sourceDir, outputDir string) *ContentType {
	if sourceDir == "" {
		paths := conf.Paths()
		sourceDir = paths.Abs(paths.BranchIncludes())
	}
	if outputDir == "" {
		outputDir = filepath.Join(sourceDir, name)
	}
	return &ContentType{Name: name, Dir: sourceDir, OutputDir: outputDir, Generator: gen}
}

// FnPrefix is the path prefix every source file of this type starts with.
func (c *ContentType) FnPrefix() string { return filepath.Join(c.Dir, c.Name) }

// Sources lists YAML files under Dir whose path starts with FnPrefix.
func (c *ContentType) Sources() ([]string, error) {
	prefix := c.FnPrefix()
	var out []string
	err := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		if strings.HasPrefix(path, prefix) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

// Basename strips FnPrefix, the separator and the .yaml extension:
// <dir>/steps-install.yaml becomes "install".
func (c *ContentType) Basename(fn string) string {
	rest := strings.TrimPrefix(fn, c.FnPrefix())
	rest = strings.TrimLeft(rest, "-_"+string(filepath.Separator))
	return strings.TrimSuffix(rest, filepath.Ext(rest))
}

// ContentRegistry holds content types in registration order.
type ContentRegistry struct {
	mu    sync.RWMutex
	order []string
	types map[string]*ContentType
}

func NewContentRegistry() *ContentRegistry {
	return &ContentRegistry{types: make(map[string]*ContentType)}
}

// Add registers ct. A name that is already registered keeps its first definition.
func (r *ContentRegistry) Add(ct *ContentType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[ct.Name]; ok {
		return false
	}
	r.types[ct.Name] = ct
	r.order = append(r.order, ct.Name)
	return true
}

// Get returns the content type registered under name.
func (r *ContentRegistry) Get(name string) (*ContentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.types[name]
	return ct, ok
}

// Types returns every registered content type in registration order.
func (r *ContentRegistry) Types() []*ContentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ContentType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// OutputDirectories lists output directories with the first prefixLen bytes removed.
func (r *ContentRegistry) OutputDirectories(prefixLen int) []string {
	types := r.Types()
	out := make([]string, 0, len(types))
	for _, ct := range types {
		dir := ct.OutputDir
		if prefixLen <= len(dir) {
			dir = dir[prefixLen:]
		}
		out = append(out, dir)
	}
	return out
}
