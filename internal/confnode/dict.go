package confnode

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Redacted replaces secret values in Dict(true).
const Redacted = "redacted"

var redactedNames = []string{"pass", "password", "token", "key", "secret"}

func (n *Node) redacts(name string) bool {
	if f, ok := n.schema.Field(name); ok && f.Redact {
		return true
	}
	return slices.Contains(redactedNames, strings.ToLower(name))
}

// Dict renders stored state as plain nested maps and lists. With redact set,
// secret fields are masked. The private "_id" bookkeeping value is included
// when present.
func (n *Node) Dict(redact bool) map[string]any {
	out := make(map[string]any, len(n.state)+1)
	for _, k := range n.keys {
		if redact && n.redacts(k) {
			out[k] = Redacted
			continue
		}
		out[k] = plain(n.state[k], redact)
	}
	if id, ok := n.private["_id"]; ok {
		out["_id"] = plain(id, redact)
	}
	return out
}

func plain(v any, redact bool) any {
	switch t := v.(type) {
	case *Node:
		return t.Dict(redact)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item, redact)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = plain(item, redact)
		}
		return out
	}
	return v
}

// Write serializes Dict(false) to path, or to the ingested source when path
// is empty. The extension selects the codec.
func (n *Node) Write(path string) error {
	if path == "" {
		path = n.source
	}
	if path == "" {
		return ferrors.WrapError(ErrNoPath, ferrors.CategoryOutput, "cannot write "+n.schema.Name()).Build()
	}
	format, ok := FormatFor(path)
	if !ok {
		return ferrors.WrapError(ErrUnsupportedFormat, ferrors.CategoryOutput, "cannot write "+path).
			WithContext("path", path).
			Build()
	}
	data, err := Encode(format, n.Dict(false))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryOutput, "cannot encode "+path).Build()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot create "+dir).Build()
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write "+path).Build()
	}
	return nil
}
