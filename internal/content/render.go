package content

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Renderer writes the resolved units of one source file.
type Renderer interface {
	// Ext is the extension of rendered files, including the dot.
	Ext() string
	Render(w io.Writer, kind string, units []map[string]any) error
}

// YAMLRenderer writes units as a multi-document YAML stream.
type YAMLRenderer struct{}

func (YAMLRenderer) Ext() string { return ".yaml" }

func (YAMLRenderer) Render(w io.Writer, _ string, units []map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, u := range units {
		if err := enc.Encode(u); err != nil {
			return err
		}
	}
	return enc.Close()
}

// writeRendered renders into a temporary file next to path and renames it
// into place, so readers never observe a partial file.
func writeRendered(path string, r Renderer, kind string, units []map[string]any) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, kind, units); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryOutput, "cannot render "+kind).
			WithContext("path", path).
			Build()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot create "+dir).Build()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot create temporary file").
			WithContext("path", path).
			Build()
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(buf.Bytes())
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot write "+path).Build()
	}
	return nil
}
