package confnode

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrReadOnlyField is returned when assigning a field that only has a getter.
var ErrReadOnlyField = errors.New("configuration field is read-only")

// Node is one validated configuration subtree.
type Node struct {
	schema  *Schema
	root    *Node
	keys    []string
	state   map[string]any
	private map[string]any
	source  string
}

// New creates an empty root node.
func New(schema *Schema) *Node {
	return &Node{
		schema:  schema,
		state:   make(map[string]any),
		private: make(map[string]any),
	}
}

// NewChild creates an empty node holding a non-owning reference to root.
func NewChild(schema *Schema, root *Node) (*Node, error) {
	if root == nil {
		return nil, fieldError(ErrNoRoot, schema.Name(), "", "child configuration created without root")
	}
	n := New(schema)
	n.root = root
	return n, nil
}

// Root returns the root node this node resolves global state against.
// A root node returns itself.
func (n *Node) Root() *Node {
	if n.root == nil {
		return n
	}
	return n.root
}

// IsRoot reports whether n was created without a root reference.
func (n *Node) IsRoot() bool { return n.root == nil }

func (n *Node) Schema() *Schema { return n.schema }

// Source returns the file n was last ingested from, if any.
func (n *Node) Source() string { return n.source }

func isPrivate(name string) bool { return strings.HasPrefix(name, "_") }

// Set assigns one field through its setter. On error the node is unchanged.
func (n *Node) Set(name string, value any) error {
	if isPrivate(name) {
		n.private[name] = value
		return nil
	}
	f, declared := n.schema.Field(name)
	if !declared && !n.schema.accepts(name) {
		return fieldError(ErrUnknownField, n.schema.Name(), name, "unknown field "+n.schema.Name()+"."+name)
	}
	if declared {
		if f.Get != nil && f.Set == nil {
			return fieldError(ErrReadOnlyField, n.schema.Name(), name, "field "+n.schema.Name()+"."+name+" is computed")
		}
		if f.Set != nil {
			v, err := f.Set(n, value)
			if err != nil {
				return setterError(n.schema.Name(), name, err)
			}
			value = v
		}
	}
	wrapped, err := n.wrap(name, f, value)
	if err != nil {
		return err
	}
	n.store(name, wrapped)
	return nil
}

func (n *Node) store(name string, value any) {
	if _, ok := n.state[name]; !ok {
		n.keys = append(n.keys, name)
	}
	n.state[name] = value
}

func (n *Node) childSchema(name string, f *Field) *Schema {
	if f != nil && f.Nested != nil {
		return f.Nested
	}
	if f == nil && n.schema.nested != nil {
		return n.schema.nested
	}
	return OpenSchema(n.schema.Name()+"."+name, nil)
}

func (n *Node) wrap(name string, f *Field, value any) (any, error) {
	switch v := value.(type) {
	case map[string]any, map[any]any:
		child, err := NewChild(n.childSchema(name, f), n.Root())
		if err != nil {
			return nil, err
		}
		if err := child.Ingest(normalizeMap(v)); err != nil {
			return nil, err
		}
		return child, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return n.wrap(name, f, items)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			switch item.(type) {
			case map[string]any, map[any]any:
				w, err := n.wrap(name, f, item)
				if err != nil {
					return nil, err
				}
				out[i] = w
			default:
				out[i] = item
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

// Get reads a field: private bookkeeping, then computed getters, then stored state.
func (n *Node) Get(name string) (any, error) {
	if isPrivate(name) {
		if v, ok := n.private[name]; ok {
			return v, nil
		}
		return nil, fieldError(ErrFieldNotFound, n.schema.Name(), name, "field "+name+" not found")
	}
	if f, ok := n.schema.Field(name); ok && f.Get != nil {
		return f.Get(n)
	}
	if v, ok := n.state[name]; ok {
		return v, nil
	}
	return nil, fieldError(ErrFieldNotFound, n.schema.Name(), name, "field "+n.schema.Name()+"."+name+" not found")
}

// Raw returns the stored value of name, bypassing getters.
func (n *Node) Raw(name string) (any, bool) {
	v, ok := n.state[name]
	return v, ok
}

// Has reports whether name has a stored value.
func (n *Node) Has(name string) bool {
	_, ok := n.state[name]
	return ok
}

// Delete removes a stored value.
func (n *Node) Delete(name string) {
	if _, ok := n.state[name]; !ok {
		return
	}
	delete(n.state, name)
	for i, k := range n.keys {
		if k == name {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
}

// Keys returns stored field names in assignment order.
func (n *Node) Keys() []string {
	return append([]string(nil), n.keys...)
}

// String reads name as a string. A nil value reads as "".
func (n *Node) String(name string) (string, error) {
	v, err := n.Get(name)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case int, int64, float64, bool:
		return fmt.Sprint(s), nil
	}
	return "", typeError(n, name, "string", v)
}

// Bool reads name as a bool. A nil value reads as false.
func (n *Node) Bool(name string) (bool, error) {
	v, err := n.Get(name)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	}
	return false, typeError(n, name, "bool", v)
}

// Int reads name as an int.
func (n *Node) Int(name string) (int, error) {
	v, err := n.Get(name)
	if err != nil {
		return 0, err
	}
	if i, ok := AsInt(v); ok {
		return i, nil
	}
	return 0, typeError(n, name, "int", v)
}

// Strings reads name as a list of strings. A single string reads as a one-element list.
func (n *Node) Strings(name string) ([]string, error) {
	v, err := n.Get(name)
	if err != nil {
		return nil, err
	}
	if s, ok := AsStrings(v); ok {
		return s, nil
	}
	return nil, typeError(n, name, "list of strings", v)
}

// Child reads name as a nested node.
func (n *Node) Child(name string) (*Node, error) {
	v, err := n.Get(name)
	if err != nil {
		return nil, err
	}
	if c, ok := v.(*Node); ok {
		return c, nil
	}
	return nil, typeError(n, name, "mapping", v)
}

// Nodes reads name as a list of nested nodes.
func (n *Node) Nodes(name string) ([]*Node, error) {
	v, err := n.Get(name)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		return nil, typeError(n, name, "list of mappings", v)
	}
	out := make([]*Node, 0, len(items))
	for _, item := range items {
		c, ok := item.(*Node)
		if !ok {
			return nil, typeError(n, name, "list of mappings", v)
		}
		out = append(out, c)
	}
	return out, nil
}

// StringOr reads name as a string, returning def when it is unset or invalid.
func (n *Node) StringOr(name, def string) string {
	if s, err := n.String(name); err == nil && s != "" {
		return s
	}
	return def
}

// BoolOr reads name as a bool, returning def when it is unset or invalid.
func (n *Node) BoolOr(name string, def bool) bool {
	if b, err := n.Bool(name); err == nil {
		return b
	}
	return def
}

// IntOr reads name as an int, returning def when it is unset or invalid.
func (n *Node) IntOr(name string, def int) int {
	if i, err := n.Int(name); err == nil {
		return i
	}
	return def
}

func typeError(n *Node, name, want string, got any) error {
	return setterError(n.schema.Name(), name, fmt.Errorf("expected %s, got %T", want, got))
}

// AsInt converts decoded numeric values to int.
func AsInt(v any) (int, bool) {
	switch i := v.(type) {
	case int:
		return i, true
	case int64:
		return int(i), true
	case uint64:
		return int(i), true
	case float64:
		if i == math.Trunc(i) {
			return int(i), true
		}
	}
	return 0, false
}

// AsStrings converts decoded lists to []string.
func AsStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case string:
		return []string{s}, true
	case []string:
		return append([]string(nil), s...), true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	}
	return nil, false
}

// Clone returns a deep copy of n sharing n's root reference.
func (n *Node) Clone() *Node {
	c := &Node{
		schema:  n.schema,
		root:    n.root,
		keys:    append([]string(nil), n.keys...),
		state:   make(map[string]any, len(n.state)),
		private: make(map[string]any, len(n.private)),
		source:  n.source,
	}
	for k, v := range n.state {
		c.state[k] = deepCopy(v)
	}
	for k, v := range n.private {
		c.private[k] = deepCopy(v)
	}
	return c
}

// MergeUnder copies every stored field of base that n does not already have.
// Copied values are deep copies, so later mutation of n never reaches base.
func (n *Node) MergeUnder(base *Node) {
	for _, k := range base.keys {
		if _, ok := n.state[k]; ok {
			continue
		}
		n.store(k, deepCopy(base.state[k]))
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case *Node:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
