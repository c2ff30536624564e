package inheritance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/confnode"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// File holds the units parsed from one content file, in document order.
type File struct {
	path  string
	kind  *Kind
	cache *Cache
	units []*Unit
	byRef map[string]*Unit
}

func newFile(path string, kind *Kind, cache *Cache) *File {
	return &File{path: path, kind: kind, cache: cache, byRef: map[string]*Unit{}}
}

func (f *File) Path() string { return f.path }

// Add validates doc and appends it as a unit. Documents for another edition
// are skipped and return a nil unit.
func (f *File) Add(doc map[string]any) (*Unit, error) {
	check := f.kind.EditionCheck
	if check == nil {
		check = DefaultEditionCheck
	}
	if !check(doc, f.cache.edition()) {
		return nil, nil
	}
	u, err := NewUnit(f.kind, doc, f.cache.root())
	if err != nil {
		return nil, documentError(err, "invalid "+f.kind.Name+" document", f.path)
	}
	u.file = f.path
	if u.ref != "" {
		if _, dup := f.byRef[u.ref]; dup {
			return nil, inheritanceError(ErrDuplicateRef, fmt.Sprintf("ref %q defined twice in %s", u.ref, f.path), f.path, u.ref)
		}
		f.byRef[u.ref] = u
	}
	f.units = append(f.units, u)
	if f.kind.AfterAdd != nil {
		if err := f.kind.AfterAdd(f, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Lookup returns the unit named ref without resolving it.
func (f *File) Lookup(ref string) (*Unit, bool) {
	u, ok := f.byRef[ref]
	return u, ok
}

// Contains reports whether the file defines ref.
func (f *File) Contains(ref string) bool {
	_, ok := f.byRef[ref]
	return ok
}

// Fetch returns the resolved unit named ref.
func (f *File) Fetch(ref string) (*Unit, error) {
	u, ok := f.byRef[ref]
	if !ok {
		return nil, inheritanceError(ErrReferenceNotFound, fmt.Sprintf("ref %q not found in %s", ref, f.path), f.path, ref)
	}
	if err := u.Resolve(f.cache); err != nil {
		return nil, err
	}
	return u, nil
}

// Units returns the file's units in document order.
func (f *File) Units() []*Unit { return slices.Clone(f.units) }

// Len returns the number of units.
func (f *File) Len() int { return len(f.units) }

// IsResolved reports whether every unit is resolved.
func (f *File) IsResolved() bool {
	for _, u := range f.units {
		if !u.IsResolved() {
			return false
		}
	}
	return true
}

// ResolveAll resolves every unit, collecting all failures.
func (f *File) ResolveAll() error {
	var errs []error
	for _, u := range f.units {
		if err := u.Resolve(f.cache); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ordered returns units sorted by number when every unit has one,
// otherwise in document order.
func (f *File) Ordered() []*Unit {
	out := f.Units()
	for _, u := range out {
		if !u.node.Has("number") {
			return out
		}
	}
	slices.SortStableFunc(out, func(a, b *Unit) int {
		return a.node.IntOr("number", 0) - b.node.IntOr("number", 0)
	})
	return out
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read content file").
			WithContext("file", f.path).
			Build()
	}
	docs, err := decodeDocuments(data)
	if err != nil {
		return documentError(err, "parse content file", f.path)
	}
	for _, doc := range docs {
		if _, err := f.Add(doc); err != nil {
			return err
		}
	}
	return nil
}

// decodeDocuments splits a multi-document YAML stream into mappings.
func decodeDocuments(data []byte) ([]map[string]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var docs []map[string]any
	for i := 0; ; i++ {
		var raw any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, fmt.Errorf("document %d is empty", i)
		}
		doc, ok := confnode.AsMap(raw)
		if !ok {
			return nil, fmt.Errorf("document %d is %T, not a mapping", i, raw)
		}
		docs = append(docs, doc)
	}
}
