package config

import (
	"fmt"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

// EditionSchema describes one entry of project.editions.
var EditionSchema = confnode.NewSchema("edition",
	strField("name"),
	strField("tag"),
	confnode.Field{Name: "branched", Set: boolSetter, Get: orCompute("branched", constant(false))},
)

// ProjectSchema describes project metadata. edition is derived from the
// runstate edition when it names one of the declared editions.
var ProjectSchema = confnode.NewSchema("project",
	confnode.Field{Name: "name", Set: nonEmptyString},
	strField("tag"),
	strField("url"),
	strField("title"),
	confnode.Field{Name: "editions", Set: setEditions, Nested: EditionSchema},
	confnode.Field{Name: "edition", Get: projectEdition},
	confnode.Field{Name: "branched", Set: boolSetter, Get: orCompute("branched", func(n *confnode.Node) (any, error) {
		if e := editionEntry(n); e != nil {
			return e.BoolOr("branched", false), nil
		}
		return false, nil
	})},
	confnode.Field{Name: "basepath", Set: stringSetter, Get: orCompute("basepath", func(n *confnode.Node) (any, error) {
		if e := editionEntry(n); e != nil {
			return e.StringOr("tag", ""), nil
		}
		return n.StringOr("tag", ""), nil
	})},
	confnode.Field{Name: "siteroot", Set: truthy, Get: orCompute("siteroot", constant(false))},
)

func nonEmptyString(_ *confnode.Node, v any) (any, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, fmt.Errorf("expected non-empty string, got %v", v)
	}
	return s, nil
}

func truthy(_ *confnode.Node, v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case nil:
		return false, nil
	case string:
		return t != "", nil
	}
	if i, ok := confnode.AsInt(v); ok {
		return i != 0, nil
	}
	return true, nil
}

func setEditions(_ *confnode.Node, v any) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("editions must be a list")
	}
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("edition %d must be a mapping", i)
		}
		if _, ok := m["name"]; !ok {
			return nil, fmt.Errorf("edition %d has no name", i)
		}
	}
	return items, nil
}

func editionNames(n *confnode.Node) []string {
	editions, err := n.Nodes("editions")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(editions))
	for _, e := range editions {
		names = append(names, e.StringOr("name", ""))
	}
	return names
}

func projectEdition(n *confnode.Node) (any, error) {
	requested := section(n, "runstate").StringOr("edition", "")
	if requested != "" && slices.Contains(editionNames(n), requested) {
		return requested, nil
	}
	return n.StringOr("name", ""), nil
}

func editionEntry(n *confnode.Node) *confnode.Node {
	edition := n.StringOr("edition", "")
	editions, err := n.Nodes("editions")
	if err != nil {
		return nil
	}
	for _, e := range editions {
		if e.StringOr("name", "") == edition {
			return e
		}
	}
	return nil
}

// Project is the typed view of the project section.
type Project struct{ n *confnode.Node }

func (p Project) Node() *confnode.Node { return p.n }
func (p Project) Name() string         { return p.n.StringOr("name", "") }
func (p Project) Editions() []string   { return editionNames(p.n) }
func (p Project) Branched() bool       { return p.n.BoolOr("branched", false) }
func (p Project) Basepath() string     { return p.n.StringOr("basepath", "") }

// Edition returns the active edition, the project name when none is selected.
func (p Project) Edition() string { return p.n.StringOr("edition", "") }

// HasEdition reports whether the active edition differs from the project itself.
func (p Project) HasEdition() bool {
	e := p.Edition()
	return e != "" && e != p.Name()
}
