package config

import (
	"log/slog"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"git.home.luguber.info/inful/docweave/internal/confnode"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

const defaultBranch = "master"

// BranchesSchema exposes branch state. current comes from the runstate
// override or the repository HEAD; manual and published come from the
// published-branches document.
var BranchesSchema = confnode.NewSchema("branches",
	confnode.Field{Name: "current", Get: func(n *confnode.Node) (any, error) {
		return currentBranch(n), nil
	}},
	confnode.Field{Name: "manual", Get: func(n *confnode.Node) (any, error) {
		return branchConf(n).StringOr("manual", ""), nil
	}},
	confnode.Field{Name: "published", Get: func(n *confnode.Node) (any, error) {
		if published, err := branchConf(n).Strings("published"); err == nil && len(published) > 0 {
			return published, nil
		}
		return []string{currentBranch(n)}, nil
	}},
)

// GitSchema describes the git section.
var GitSchema = confnode.NewSchema("git",
	confnode.Field{Name: "remote", Nested: confnode.NewSchema("remote", strField("upstream"), strField("tools"))},
	confnode.Field{Name: "branches", Get: func(n *confnode.Node) (any, error) {
		return confnode.NewChild(BranchesSchema, n.Root())
	}},
	confnode.Field{Name: "commit", Get: func(n *confnode.Node) (any, error) {
		repo := repository(n)
		if repo == nil {
			return "", nil
		}
		ref, err := repo.Head()
		if err != nil {
			return "", nil
		}
		return ref.Hash().String(), nil
	}},
)

// openRepository runs when the root git section is assigned. It reads
// paths.projectroot, which is why the root field depends on paths.
func openRepository(root *confnode.Node, v any) (any, error) {
	projectRoot := Paths{n: section(root, "paths")}.ProjectRoot()
	repo, err := git.PlainOpenWithOptions(projectRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		slog.Debug("No git repository for project", logfields.Path(projectRoot), logfields.Error(err))
		repo = nil
	}
	if err := root.Set("_repo", repo); err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	return v, nil
}

func repository(n *confnode.Node) *git.Repository {
	v, err := n.Root().Get("_repo")
	if err != nil {
		return nil
	}
	repo, _ := v.(*git.Repository)
	return repo
}

func currentBranch(n *confnode.Node) string {
	if b := (Runtime{n: section(n, "runstate")}).GitBranch(); b != "" {
		return b
	}
	repo := repository(n)
	if repo == nil {
		return defaultBranch
	}
	ref, err := repo.Head()
	if err != nil || !ref.Name().IsBranch() {
		return defaultBranch
	}
	return ref.Name().Short()
}

// branchConf loads git.branches from the published-branches document once
// per root and caches it as private root state.
func branchConf(n *confnode.Node) *confnode.Node {
	root := n.Root()
	if v, err := root.Get("_branch_conf"); err == nil {
		if c, ok := v.(*confnode.Node); ok {
			return c
		}
	}
	out := confnode.New(emptySection)
	paths := Paths{n: section(root, "paths")}
	project := Project{n: section(root, "project")}
	candidates := []string{
		paths.Abs(filepath.Join(paths.GlobalConfig(), project.Name()+"-published-branches.yaml")),
		paths.Abs(filepath.Join(paths.BuildData(), "published_branches.yaml")),
	}
	for _, fn := range candidates {
		doc := confnode.New(emptySection)
		if err := doc.Ingest(fn); err != nil {
			continue
		}
		if g, err := doc.Child("git"); err == nil {
			if b, err := g.Child("branches"); err == nil {
				out = b
			}
		}
		break
	}
	_ = root.Set("_branch_conf", out)
	return out
}

// Git is the typed view of the git section.
type Git struct{ n *confnode.Node }

func (g Git) Node() *confnode.Node  { return g.n }
func (g Git) CurrentBranch() string { return currentBranch(g.n) }
func (g Git) Commit() string        { return g.n.StringOr("commit", "") }
func (g Git) ManualBranch() string  { return branchConf(g.n).StringOr("manual", "") }

// PublishedBranches lists published branches, falling back to the current one.
func (g Git) PublishedBranches() []string {
	b, err := confnode.NewChild(BranchesSchema, g.n.Root())
	if err != nil {
		return nil
	}
	published, _ := b.Strings("published")
	return published
}

// PublishedDefault is the first published branch.
func (g Git) PublishedDefault() string {
	if p := g.PublishedBranches(); len(p) > 0 {
		return p[0]
	}
	return defaultBranch
}
