package confnode

import (
	"slices"
	"sort"
)

// SetFunc validates value for assignment to n and returns what should be stored.
type SetFunc func(n *Node, value any) (any, error)

// GetFunc computes a field value on read.
type GetFunc func(n *Node) (any, error)

// Field declares one settable or computed attribute.
type Field struct {
	Name string
	// Set runs on every assignment. A nil Set stores the value as given.
	Set SetFunc
	// Get, when set, takes precedence over stored state on read.
	Get GetFunc
	// DependsOn names fields that Set reads; ingestion assigns them first.
	DependsOn []string
	// Redact masks the field in Dict(true) in addition to the default names.
	Redact bool
	// Nested is the schema mapping values are wrapped into.
	Nested *Schema
	// ReadOnly fields have a getter and reject assignment.
	ReadOnly bool
}

// Schema is the declared field set of one node type.
type Schema struct {
	name   string
	fields map[string]*Field
	open   bool
	nested *Schema
}

// NewSchema builds a closed schema: names outside fields are rejected.
func NewSchema(name string, fields ...Field) *Schema {
	s := &Schema{name: name, fields: make(map[string]*Field, len(fields))}
	for i := range fields {
		f := fields[i]
		s.fields[f.Name] = &f
	}
	return s
}

// OpenSchema builds a schema that accepts any name. Declared fields still
// run their setters. Nested mappings under undeclared names use nested, or
// another open schema when nested is nil.
func OpenSchema(name string, nested *Schema, fields ...Field) *Schema {
	s := NewSchema(name, fields...)
	s.open = true
	s.nested = nested
	return s
}

// Extend returns a copy of s with additional fields; later declarations win.
func (s *Schema) Extend(name string, fields ...Field) *Schema {
	out := &Schema{name: name, fields: make(map[string]*Field, len(s.fields)+len(fields)), open: s.open, nested: s.nested}
	for k, f := range s.fields {
		out.fields[k] = f
	}
	for i := range fields {
		f := fields[i]
		out.fields[f.Name] = &f
	}
	return out
}

func (s *Schema) Name() string { return s.name }

// Open reports whether s accepts undeclared names.
func (s *Schema) Open() bool { return s.open }

// Field returns the declaration for name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared field names in lexical order.
func (s *Schema) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for k := range s.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Schema) accepts(name string) bool {
	if _, ok := s.fields[name]; ok {
		return true
	}
	return s.open
}

// ingestOrder sorts keys with Kahn's algorithm over DependsOn edges. Ready
// fields are taken in reverse lexical order, which is also the whole order
// when no field declares dependencies.
func (s *Schema) ingestOrder(keys []string) ([]string, error) {
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	graph := make(map[string][]string, len(keys))
	inDegree := make(map[string]int, len(keys))
	for _, k := range keys {
		if _, seen := inDegree[k]; !seen {
			inDegree[k] = 0
		}
		f, ok := s.fields[k]
		if !ok {
			continue
		}
		for _, dep := range f.DependsOn {
			if !present[dep] || dep == k {
				continue
			}
			graph[dep] = append(graph[dep], k)
			inDegree[k]++
		}
	}

	var queue []string
	for _, k := range keys {
		if inDegree[k] == 0 {
			queue = append(queue, k)
		}
	}
	sortReverse(queue)

	result := make([]string, 0, len(keys))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, next := range graph[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
				sortReverse(queue)
			}
		}
	}

	if len(result) != len(keys) {
		var unvisited []string
		for _, k := range keys {
			if !slices.Contains(result, k) {
				unvisited = append(unvisited, k)
			}
		}
		sort.Strings(unvisited)
		return nil, cycleError(s.name, unvisited)
	}
	return result, nil
}

func sortReverse(names []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
}
