package config

import (
	"fmt"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

var makeSchema = confnode.NewSchema("make",
	confnode.Field{Name: "generated", Set: stringListSetter},
	confnode.Field{Name: "static", Set: stringListSetter},
)

var toolsSchema = confnode.NewSchema("tools",
	boolField("pinned"),
	confnode.Field{Name: "ref", Set: func(_ *confnode.Node, v any) (any, error) {
		s, _ := v.(string)
		if slices.Contains([]string{"HEAD", "master", "main"}, s) || len(s) == 40 {
			return s, nil
		}
		return nil, fmt.Errorf("tools ref must be HEAD, a branch or a full commit, got %q", s)
	}},
)

// SystemSchema describes build-system state: generated file lists, tool
// pinning and the dependency cache location.
var SystemSchema = confnode.NewSchema("system",
	confnode.Field{Name: "make", Nested: makeSchema},
	confnode.Field{Name: "tools", Nested: toolsSchema},
	confnode.Field{Name: "files", Set: func(_ *confnode.Node, v any) (any, error) {
		if _, ok := v.([]any); !ok {
			return nil, fmt.Errorf("files must be a list, got %T", v)
		}
		return v, nil
	}},
	confnode.Field{Name: "dependency_cache_fn", Set: stringSetter, Get: orCompute("dependency_cache_fn", func(n *confnode.Node) (any, error) {
		name := "dependencies.json"
		if e := projectOf(n).Edition(); e != "" {
			name = "dependencies-" + e + ".json"
		}
		return filepath.Join(Paths{n: section(n, "paths")}.BranchOutput(), name), nil
	})},
	confnode.Field{Name: "dependency_cache", Set: stringSetter, Get: orCompute("dependency_cache", func(n *confnode.Node) (any, error) {
		return Paths{n: section(n, "paths")}.Abs(n.StringOr("dependency_cache_fn", "")), nil
	})},
	confnode.Field{Name: "branched", Get: func(n *confnode.Node) (any, error) {
		return projectOf(n).Branched(), nil
	}},
	confnode.Field{Name: "runstate", Get: func(n *confnode.Node) (any, error) {
		return section(n, "runstate"), nil
	}},
)

// System is the typed view of the system section.
type System struct {
	n        *confnode.Node
	registry *ContentRegistry
}

func (s System) Node() *confnode.Node { return s.n }

// DependencyCache is the absolute path of the hashed dependency document.
func (s System) DependencyCache() string { return s.n.StringOr("dependency_cache", "") }

// Files lists extra configuration files named in system.files.
func (s System) Files() []string {
	v, err := s.n.Get("files")
	if err != nil {
		return nil
	}
	out, _ := confnode.AsStrings(v)
	return out
}

// Content returns the content-type registry shared by the whole configuration.
func (s System) Content() *ContentRegistry { return s.registry }
