// Package config builds the typed build configuration tree.
//
// A Configuration wraps a root confnode.Node whose sections (runstate,
// project, paths, git, system, version) are child nodes holding the root as
// a non-owning reference. Derived values such as branch output directories
// are computed getters that read sibling sections through that root, so they
// always reflect the current runtime state.
package config
