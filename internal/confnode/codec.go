package confnode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a document codec by file extension.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor maps a path's extension to its codec.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// ReadFile decodes a mapping document. Empty documents decode as empty mappings.
func ReadFile(path string) (map[string]any, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, sourceError(ErrUnsupportedFormat, path, nil)
	}
	// #nosec G304 -- configuration paths come from the command line or discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sourceError(ErrInvalidSource, path, err)
	}
	out, err := Decode(format, data)
	if err != nil {
		return nil, sourceError(ErrInvalidSource, path, err)
	}
	return out, nil
}

// Decode parses data as a single mapping document.
func Decode(format Format, data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var raw any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		m := map[string]any{}
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		raw = m
	default:
		return nil, ErrUnsupportedFormat
	}
	switch m := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any, map[any]any:
		return normalizeMap(m), nil
	}
	return nil, fmt.Errorf("document root is %T, not a mapping", raw)
}

// Encode serializes a plain mapping. JSON output is indented three spaces
// with sorted keys.
func Encode(format Format, data map[string]any) ([]byte, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(data, "", "   ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(data); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, ErrUnsupportedFormat
}

// normalizeMap converts YAML's map[any]any and TOML's table slices into the
// map[string]any shape the rest of the package expects.
func normalizeMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	}
	return nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return normalizeMap(t)
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeMap(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	}
	return v
}

// AsMap normalizes a decoded mapping. It reports false for non-mappings.
func AsMap(v any) (map[string]any, bool) {
	m := normalizeMap(v)
	return m, m != nil
}
