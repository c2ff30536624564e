package config

import (
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

// PathsSchema describes the project's directory layout. Branch-specific
// paths are computed from git and project state on every read.
var PathsSchema = confnode.NewSchema("paths",
	strField("output"),
	strField("source"),
	strField("includes"),
	strField("images"),
	strField("buildsystem"),
	strField("tools"),
	strField("builddata"),
	confnode.Field{Name: "locale", Set: stringSetter, Get: func(n *confnode.Node) (any, error) {
		locale := raw(n, "locale")
		if p := projectOf(n); p.HasEdition() {
			return locale + "-" + p.Edition(), nil
		}
		return locale, nil
	}},
	confnode.Field{Name: "projectroot", Set: dirSetter, Get: orCompute("projectroot", func(*confnode.Node) (any, error) {
		return discoverProjectRoot(), nil
	})},
	confnode.Field{Name: "public", Get: func(n *confnode.Node) (any, error) {
		lang := section(n, "runstate").StringOr("language", "en")
		name := "public"
		if lang != "" && lang != "en" {
			name = "public-" + lang
		}
		return filepath.Join(raw(n, "output"), name), nil
	}},
	confnode.Field{Name: "branch_output", Get: func(n *confnode.Node) (any, error) {
		return filepath.Join(raw(n, "output"), gitOf(n).CurrentBranch()), nil
	}},
	confnode.Field{Name: "branch_source", Get: func(n *confnode.Node) (any, error) {
		return branchSource(n), nil
	}},
	confnode.Field{Name: "branch_staging", Get: func(n *confnode.Node) (any, error) {
		return filepath.Join(n.StringOr("public", ""), gitOf(n).CurrentBranch()), nil
	}},
	confnode.Field{Name: "branch_includes", Get: func(n *confnode.Node) (any, error) {
		return underBranchSource(n, raw(n, "includes")), nil
	}},
	confnode.Field{Name: "branch_images", Get: func(n *confnode.Node) (any, error) {
		return underBranchSource(n, raw(n, "images")), nil
	}},
	confnode.Field{Name: "global_config", Get: func(n *confnode.Node) (any, error) {
		return filepath.Join(raw(n, "buildsystem"), "data"), nil
	}},
	confnode.Field{Name: "buildarchive", Get: func(n *confnode.Node) (any, error) {
		return filepath.Join(raw(n, "output"), "archive"), nil
	}},
	confnode.Field{Name: "public_site_output", Get: publicSiteOutput},
	confnode.Field{Name: "htaccess", Get: func(n *confnode.Node) (any, error) {
		parts := []string{n.StringOr("public", "")}
		if p := projectOf(n); p.HasEdition() {
			parts = append(parts, p.Edition())
		}
		return filepath.Join(append(parts, ".htaccess")...), nil
	}},
	confnode.Field{Name: "file_changes_database", Get: func(n *confnode.Node) (any, error) {
		return filepath.Join(n.StringOr("projectroot", "."), raw(n, "output"), "stage-cache.db"), nil
	}},
)

func raw(n *confnode.Node, name string) string {
	if v, ok := n.Raw(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func projectOf(n *confnode.Node) Project { return Project{n: section(n, "project")} }
func gitOf(n *confnode.Node) Git         { return Git{n: section(n, "git")} }

func branchSource(n *confnode.Node) string {
	p := filepath.Join(n.StringOr("branch_output", ""), raw(n, "source"))
	if proj := projectOf(n); proj.HasEdition() {
		p += "-" + proj.Edition()
	}
	return p
}

// underBranchSource re-roots dir, which is usually below source, under the
// branch source directory.
func underBranchSource(n *confnode.Node, dir string) string {
	source := raw(n, "source")
	if source != "" && strings.HasPrefix(dir, source+string(filepath.Separator)) {
		dir = dir[len(source)+1:]
	}
	return filepath.Join(branchSource(n), dir)
}

func publicSiteOutput(n *confnode.Node) (any, error) {
	proj := projectOf(n)
	git := gitOf(n)
	parts := []string{n.StringOr("public", "")}
	if proj.HasEdition() {
		parts = append(parts, proj.Edition())
	}
	current := git.CurrentBranch()
	switch {
	case proj.Branched():
		parts = append(parts, current)
	case current != "master" && proj.Edition() != "" && current != git.PublishedDefault():
		parts[len(parts)-1] += "-" + current
	}
	return filepath.Join(parts...), nil
}

// discoverProjectRoot walks up from the working directory to the first
// directory containing a "config" directory.
func discoverProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(filepath.Join(dir, "config")); err == nil && info.IsDir() {
			return dir
		}
		if filepath.Dir(dir) == dir {
			return cwd
		}
	}
}

// Paths is the typed view of the paths section.
type Paths struct{ n *confnode.Node }

func (p Paths) Node() *confnode.Node        { return p.n }
func (p Paths) Output() string              { return raw(p.n, "output") }
func (p Paths) Source() string              { return raw(p.n, "source") }
func (p Paths) BuildData() string           { return raw(p.n, "builddata") }
func (p Paths) ProjectRoot() string         { return p.n.StringOr("projectroot", ".") }
func (p Paths) Public() string              { return p.n.StringOr("public", "") }
func (p Paths) BranchOutput() string        { return p.n.StringOr("branch_output", "") }
func (p Paths) BranchSource() string        { return p.n.StringOr("branch_source", "") }
func (p Paths) BranchIncludes() string      { return p.n.StringOr("branch_includes", "") }
func (p Paths) GlobalConfig() string        { return p.n.StringOr("global_config", "") }
func (p Paths) PublicSiteOutput() string    { return p.n.StringOr("public_site_output", "") }
func (p Paths) FileChangesDatabase() string { return p.n.StringOr("file_changes_database", "") }

// Abs joins a project-relative path onto the project root.
func (p Paths) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.ProjectRoot(), rel)
}
