package inheritance

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

const maxRenderPasses = 10

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// skipRender lists fields that hold bookkeeping rather than text.
var skipRender = map[string]bool{"ref": true, "replacement": true, "edition": true}

type tokenRenderer struct {
	data  map[string]any
	funcs template.FuncMap
}

func newTokenRenderer(repl map[string]any) *tokenRenderer {
	r := &tokenRenderer{data: repl, funcs: template.FuncMap{}}
	for k, v := range repl {
		if identifier.MatchString(k) {
			r.funcs[k] = func() any { return v }
		}
	}
	return r
}

// Render substitutes replacement tokens in every text field of a resolved
// unit. Both {{name}} and {{.name}} expand; replacements may refer to each
// other up to ten levels deep.
func (u *Unit) Render() error {
	n, err := u.Node()
	if err != nil {
		return err
	}
	repl := u.Replacement()
	if len(repl) == 0 {
		return nil
	}
	r := newTokenRenderer(repl)
	if err := r.node(n); err != nil {
		return renderError(err, u.file, u.ref)
	}
	return nil
}

func (r *tokenRenderer) node(n *confnode.Node) error {
	for _, k := range n.Keys() {
		if skipRender[k] {
			continue
		}
		v, _ := n.Raw(k)
		out, changed, err := r.value(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if !changed {
			continue
		}
		if err := n.Set(k, out); err != nil {
			return err
		}
	}
	return nil
}

// value renders v. Nodes are rendered in place and never reported as changed.
func (r *tokenRenderer) value(v any) (any, bool, error) {
	switch t := v.(type) {
	case string:
		s, err := r.text(t)
		return s, s != t, err
	case []any:
		out := make([]any, len(t))
		changed := false
		for i, item := range t {
			o, c, err := r.value(item)
			if err != nil {
				return nil, false, err
			}
			out[i] = o
			changed = changed || c
		}
		return out, changed, nil
	case *confnode.Node:
		return t, false, r.node(t)
	}
	return v, false, nil
}

func (r *tokenRenderer) text(s string) (string, error) {
	for range maxRenderPasses {
		if !strings.Contains(s, "{{") {
			return s, nil
		}
		tmpl, err := template.New("replacement").Funcs(r.funcs).Option("missingkey=error").Parse(s)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, r.data); err != nil {
			return "", err
		}
		out := buf.String()
		if out == s {
			break
		}
		s = out
	}
	if strings.Contains(s, "{{") {
		return "", fmt.Errorf("tokens left in %q after %d passes", s, maxRenderPasses)
	}
	return s, nil
}
