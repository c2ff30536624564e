package inheritance

import (
	"fmt"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

// Kind describes one content type: its unit schema and per-type hooks.
type Kind struct {
	Name   string
	Schema *confnode.Schema
	// AfterAdd runs after a unit is added to a file, for example to number steps.
	AfterAdd func(f *File, u *Unit) error
	// EditionCheck decides whether a raw document belongs to the active
	// edition. Nil uses DefaultEditionCheck.
	EditionCheck func(doc map[string]any, edition string) bool
	// RefOf derives a ref for documents and source mappings that name
	// their unit some other way, such as an option's program and name.
	RefOf func(doc map[string]any) string
}

// Sequential is an AfterAdd hook numbering units 1, 2, 3... in document
// order. Units that set their own number keep it and restart the count.
func Sequential(f *File, u *Unit) error {
	if u.node.Has("number") {
		return nil
	}
	next := 1
	if n := len(f.units); n > 1 {
		next = f.units[n-2].node.IntOr("number", n-1) + 1
	}
	return u.node.Set("number", next)
}

// DefaultEditionCheck keeps documents without an edition, and documents
// whose edition (a string or list) names the active one.
func DefaultEditionCheck(doc map[string]any, edition string) bool {
	v, ok := doc["edition"]
	if !ok || v == nil || edition == "" {
		return true
	}
	names, ok := confnode.AsStrings(v)
	if !ok {
		return true
	}
	return slices.Contains(names, edition)
}

var titleLevels = map[string]int{"=": 1, "-": 2, "~": 3, "`": 4, "^": 5, "'": 6}

// TitleSchema describes a heading: text plus a level, settable directly or
// through the underline character.
var TitleSchema = confnode.NewSchema("title",
	confnode.Field{Name: "text"},
	confnode.Field{Name: "level", Set: func(_ *confnode.Node, v any) (any, error) {
		if i, ok := confnode.AsInt(v); ok {
			return i, nil
		}
		return nil, fmt.Errorf("title level must be an integer, got %T", v)
	}, Get: func(n *confnode.Node) (any, error) {
		if v, ok := n.Raw("level"); ok {
			return v, nil
		}
		return 3, nil
	}},
	confnode.Field{Name: "character", Set: func(n *confnode.Node, v any) (any, error) {
		s, _ := v.(string)
		level, ok := titleLevels[s]
		if !ok {
			return nil, fmt.Errorf("unknown title character %q", s)
		}
		if err := n.Set("level", level); err != nil {
			return nil, err
		}
		return s, nil
	}},
)

// CommonFields are accepted by every content unit.
var CommonFields = []confnode.Field{
	{Name: "ref"},
	{Name: "pre"},
	{Name: "post"},
	{Name: "final"},
	{Name: "content"},
	{Name: "edition"},
	{Name: "number", Set: func(_ *confnode.Node, v any) (any, error) {
		if i, ok := confnode.AsInt(v); ok {
			return i, nil
		}
		return nil, fmt.Errorf("number must be an integer, got %T", v)
	}},
	{Name: "title", Nested: TitleSchema, Set: func(_ *confnode.Node, v any) (any, error) {
		switch t := v.(type) {
		case string:
			return map[string]any{"text": t}, nil
		case map[string]any, *confnode.Node:
			return t, nil
		}
		return nil, fmt.Errorf("title must be a string or mapping, got %T", v)
	}},
	{Name: "replacement", Set: mergeReplacement},
}

// NewSchema builds a unit schema from CommonFields plus type-specific fields.
func NewSchema(name string, fields ...confnode.Field) *confnode.Schema {
	return confnode.NewSchema(name, append(slices.Clone(CommonFields), fields...)...)
}

// mergeReplacement merges assigned entries over any existing replacement map.
func mergeReplacement(n *confnode.Node, v any) (any, error) {
	merged := map[string]any{}
	if existing, ok := n.Raw("replacement"); ok {
		if c, ok := existing.(*confnode.Node); ok {
			for k, val := range c.Dict(false) {
				merged[k] = val
			}
		}
	}
	switch t := v.(type) {
	case nil:
	case *confnode.Node:
		for k, val := range t.Dict(false) {
			merged[k] = val
		}
	case map[string]any:
		for k, val := range t {
			merged[k] = val
		}
	case []any:
		for _, item := range t {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("replacement pairs must have two elements")
			}
			merged[fmt.Sprint(pair[0])] = pair[1]
		}
	default:
		return nil, fmt.Errorf("replacement must be a mapping, got %T", v)
	}
	return merged, nil
}
