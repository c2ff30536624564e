package config

import (
	"git.home.luguber.info/inful/docweave/internal/confnode"
)

// RootSchema orders sections so that setters reading other sections run
// after them: project edition reads runstate, opening the repository reads
// paths.projectroot.
var RootSchema = confnode.NewSchema("configuration",
	confnode.Field{Name: "runstate", Nested: RuntimeSchema},
	confnode.Field{Name: "project", Nested: ProjectSchema, DependsOn: []string{"runstate"}},
	confnode.Field{Name: "paths", Nested: PathsSchema, DependsOn: []string{"project", "runstate"}},
	confnode.Field{Name: "git", Nested: GitSchema, Set: openRepository, DependsOn: []string{"paths", "runstate"}},
	confnode.Field{Name: "system", Nested: SystemSchema, DependsOn: []string{"paths", "project", "git"}},
	confnode.Field{Name: "version", Nested: confnode.OpenSchema("version", nil)},
	confnode.Field{Name: "assets", Set: listOrScalar, Nested: confnode.OpenSchema("asset", nil)},
)

var requiredSections = []string{"runstate", "project", "paths", "git", "system", "version"}

// Configuration is the root of a build's configuration tree.
type Configuration struct {
	node     *confnode.Node
	registry *ContentRegistry
}

// New builds a configuration from a decoded document. Missing sections are
// created empty so every typed accessor has a node to read defaults from.
func New(data map[string]any) (*Configuration, error) {
	doc := make(map[string]any, len(data)+len(requiredSections))
	for k, v := range data {
		doc[k] = v
	}
	for _, name := range requiredSections {
		if doc[name] == nil {
			doc[name] = map[string]any{}
		}
	}
	root := confnode.New(RootSchema)
	if err := root.Ingest(doc); err != nil {
		return nil, err
	}
	// Prime lazily cached state so concurrent readers never write.
	branchConf(root)
	return &Configuration{node: root, registry: NewContentRegistry()}, nil
}

// Node exposes the root node for attribute-style access by name.
func (c *Configuration) Node() *confnode.Node { return c.node }

func (c *Configuration) Runstate() Runtime { return Runtime{n: section(c.node, "runstate")} }
func (c *Configuration) Project() Project  { return Project{n: section(c.node, "project")} }
func (c *Configuration) Paths() Paths      { return Paths{n: section(c.node, "paths")} }
func (c *Configuration) Git() Git          { return Git{n: section(c.node, "git")} }

func (c *Configuration) System() System {
	return System{n: section(c.node, "system"), registry: c.registry}
}

// Dict renders the whole tree, masking secrets when redact is set.
func (c *Configuration) Dict(redact bool) map[string]any { return c.node.Dict(redact) }
