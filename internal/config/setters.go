package config

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

func stringSetter(_ *confnode.Node, v any) (any, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return nil, fmt.Errorf("expected string, got %T", v)
}

func boolSetter(_ *confnode.Node, v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("expected bool, got %T", v)
}

func stringListSetter(_ *confnode.Node, v any) (any, error) {
	switch v.(type) {
	case []any, []string:
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	s, ok := confnode.AsStrings(v)
	if !ok {
		return nil, fmt.Errorf("expected list of strings")
	}
	out := make([]any, len(s))
	for i := range s {
		out[i] = s[i]
	}
	return out, nil
}

func dirSetter(_ *confnode.Node, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected directory path, got %T", v)
	}
	info, err := os.Stat(s)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s)
	}
	return s, nil
}

func strField(name string) confnode.Field {
	return confnode.Field{Name: name, Set: stringSetter}
}

func boolField(name string) confnode.Field {
	return confnode.Field{Name: name, Set: boolSetter}
}

// orCompute returns the stored value of name, or the result of compute when unset.
func orCompute(name string, compute func(n *confnode.Node) (any, error)) confnode.GetFunc {
	return func(n *confnode.Node) (any, error) {
		if v, ok := n.Raw(name); ok {
			return v, nil
		}
		return compute(n)
	}
}

func constant(v any) func(*confnode.Node) (any, error) {
	return func(*confnode.Node) (any, error) { return v, nil }
}

var emptySection = confnode.OpenSchema("empty", nil)

// section returns a sibling section through n's root. Missing sections read
// as an empty node so computed getters fall back to their defaults.
func section(n *confnode.Node, name string) *confnode.Node {
	if c, err := n.Root().Child(name); err == nil {
		return c
	}
	return confnode.New(emptySection)
}
