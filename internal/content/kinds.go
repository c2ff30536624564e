package content

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/confnode"
	"git.home.luguber.info/inful/docweave/internal/inheritance"
)

func boolValue(_ *confnode.Node, v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("expected boolean, got %T", v)
}

func intValue(_ *confnode.Node, v any) (any, error) {
	if i, ok := confnode.AsInt(v); ok {
		return i, nil
	}
	return nil, fmt.Errorf("expected integer, got %T", v)
}

func stringValue(_ *confnode.Node, v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, fmt.Errorf("expected string, got %T", v)
}

// codeLines accepts a block of code as one string or a list of lines.
func codeLines(_ *confnode.Node, v any) (any, error) {
	switch t := v.(type) {
	case string:
		lines := strings.Split(strings.TrimRight(t, "\n"), "\n")
		out := make([]any, len(lines))
		for i, l := range lines {
			out[i] = l
		}
		return out, nil
	case []any:
		return t, nil
	}
	return nil, fmt.Errorf("code must be a string or list of lines, got %T", v)
}

var directives = []string{"option", "data", "setting", "method", "function", "class", "object"}

func directiveValue(_ *confnode.Node, v any) (any, error) {
	s, _ := v.(string)
	if slices.Contains(directives, s) || strings.HasSuffix(s, "setting") {
		return s, nil
	}
	return nil, fmt.Errorf("%q is not a supported directive", s)
}

// tocFile requires an absolute document name without an extension.
func tocFile(_ *confnode.Node, v any) (any, error) {
	s, ok := v.(string)
	switch {
	case !ok:
		return nil, fmt.Errorf("file names must be strings, got %T", v)
	case !strings.HasPrefix(s, "/"):
		return nil, fmt.Errorf("%q is not a valid file specification", s)
	case strings.HasSuffix(s, ".rst"), strings.HasSuffix(s, ".txt"):
		return nil, fmt.Errorf("file specification %q cannot end with an extension", s)
	}
	return s, nil
}

var actionSchema = inheritance.NewSchema("action",
	confnode.Field{Name: "heading", Nested: inheritance.TitleSchema, Set: headingValue},
	confnode.Field{Name: "code", Set: codeLines},
	confnode.Field{Name: "language", Set: stringValue},
)

func headingValue(_ *confnode.Node, v any) (any, error) {
	switch t := v.(type) {
	case string:
		return map[string]any{"text": t}, nil
	case map[string]any, *confnode.Node:
		return t, nil
	}
	return nil, fmt.Errorf("heading must be a string or mapping, got %T", v)
}

// Steps are numbered procedures. Units without a number continue the
// sequence of the unit before them.
var Steps = &inheritance.Kind{
	Name: "steps",
	Schema: inheritance.NewSchema("step",
		confnode.Field{Name: "action", Nested: actionSchema, Set: func(_ *confnode.Node, v any) (any, error) {
			if m, ok := v.(map[string]any); ok {
				return []any{m}, nil
			}
			if l, ok := v.([]any); ok {
				return l, nil
			}
			return nil, fmt.Errorf("action must be a mapping or list, got %T", v)
		}},
		confnode.Field{Name: "heading", Nested: inheritance.TitleSchema, Set: headingValue},
		confnode.Field{Name: "optional", Set: boolValue},
		confnode.Field{Name: "level", Set: intValue},
	),
	AfterAdd: inheritance.Sequential,
}

func optionRef(doc map[string]any) string {
	program, _ := doc["program"].(string)
	name, _ := doc["name"].(string)
	if program == "" || name == "" {
		return ""
	}
	return program + "." + name
}

// ProgramOptions document command-line options and settings of a program.
var ProgramOptions = &inheritance.Kind{
	Name: "option",
	Schema: inheritance.NewSchema("option",
		confnode.Field{Name: "program", Set: stringValue},
		confnode.Field{Name: "name", Set: stringValue},
		confnode.Field{Name: "directive", Set: directiveValue},
		confnode.Field{Name: "optional", Set: boolValue},
		confnode.Field{Name: "description"},
		confnode.Field{Name: "args"},
		confnode.Field{Name: "aliases"},
		confnode.Field{Name: "default"},
		confnode.Field{Name: "type"},
	),
	RefOf: optionRef,
}

func nameRef(doc map[string]any) string {
	name, _ := doc["name"].(string)
	return name
}

// APIArgs document the arguments of an API operation.
var APIArgs = &inheritance.Kind{
	Name: "apiargs",
	Schema: inheritance.NewSchema("apiarg",
		confnode.Field{Name: "name", Set: stringValue},
		confnode.Field{Name: "arg_name", Set: stringValue},
		confnode.Field{Name: "interface", Set: stringValue},
		confnode.Field{Name: "operation", Set: stringValue},
		confnode.Field{Name: "type"},
		confnode.Field{Name: "description"},
		confnode.Field{Name: "optional", Set: boolValue},
		confnode.Field{Name: "position", Set: intValue},
	),
	RefOf: nameRef,
}

// TOC entries list documents with a description.
var TOC = &inheritance.Kind{
	Name: "toc",
	Schema: inheritance.NewSchema("toc",
		confnode.Field{Name: "file", Set: tocFile},
		confnode.Field{Name: "name"},
		confnode.Field{Name: "description"},
		confnode.Field{Name: "level", Set: intValue},
		confnode.Field{Name: "text_only", Set: boolValue},
	),
	RefOf: func(doc map[string]any) string {
		file, _ := doc["file"].(string)
		return file
	},
}

// Examples pair an operation with its results.
var Examples = &inheritance.Kind{
	Name: "example",
	Schema: inheritance.NewSchema("example",
		confnode.Field{Name: "collection", Set: stringValue},
		confnode.Field{Name: "documents"},
		confnode.Field{Name: "operation"},
		confnode.Field{Name: "results"},
		confnode.Field{Name: "code", Set: codeLines},
		confnode.Field{Name: "language", Set: stringValue},
		confnode.Field{Name: "options"},
		confnode.Field{Name: "show_title", Set: boolValue},
		confnode.Field{Name: "show_collection", Set: boolValue},
	),
}

// Extracts are reusable passages included across documents.
var Extracts = &inheritance.Kind{
	Name: "extracts",
	Schema: inheritance.NewSchema("extract",
		confnode.Field{Name: "style", Set: stringValue},
		confnode.Field{Name: "only", Set: stringValue},
		confnode.Field{Name: "append"},
		confnode.Field{Name: "prepend"},
		confnode.Field{Name: "class", Set: stringValue},
	),
}

// Release entries describe release artifacts and installation commands.
var Release = &inheritance.Kind{
	Name: "release",
	Schema: inheritance.NewSchema("release",
		confnode.Field{Name: "description"},
		confnode.Field{Name: "code", Set: codeLines},
		confnode.Field{Name: "language", Set: stringValue},
	),
}

// Glossary terms carry a definition.
var Glossary = &inheritance.Kind{
	Name: "glossary",
	Schema: inheritance.NewSchema("term",
		confnode.Field{Name: "term", Set: stringValue},
		confnode.Field{Name: "definition", Set: stringValue},
	),
	RefOf: func(doc map[string]any) string {
		term, _ := doc["term"].(string)
		return term
	},
}

// Kinds lists every built-in content type in registration order.
var Kinds = []*inheritance.Kind{Steps, ProgramOptions, APIArgs, TOC, Examples, Extracts, Release, Glossary}
