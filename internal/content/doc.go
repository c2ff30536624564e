// Package content defines the structured content types a documentation
// project keeps in YAML (steps, options, API arguments, tables of contents,
// examples, extracts, release notes and glossary terms) and turns their
// source files into build tasks.
package content
