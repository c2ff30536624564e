package confnode

import (
	"errors"
	"fmt"
	"maps"
	"os"
)

// Ingest populates n from a mapping, another Node, or a document path whose
// extension selects the codec. Keys are assigned in dependency order (see
// Field.DependsOn). Ingest is all-or-nothing: when any assignment fails the
// node keeps its previous state.
func (n *Node) Ingest(source any) error {
	var (
		data  map[string]any
		label string
		path  string
	)
	switch src := source.(type) {
	case nil:
		return sourceError(ErrInvalidSource, "<nil>", nil)
	case map[string]any:
		data, label = src, "mapping"
	case map[any]any:
		data, label = normalizeMap(src), "mapping"
	case *Node:
		data, label = src.Dict(false), "node "+src.schema.Name()
	case string:
		info, err := os.Stat(src)
		if err != nil {
			return sourceError(ErrInvalidSource, src, err)
		}
		if info.IsDir() {
			return sourceError(ErrInvalidSource, src, errors.New("is a directory"))
		}
		m, err := ReadFile(src)
		if err != nil {
			return err
		}
		data, label, path = m, src, src
	default:
		return sourceError(ErrInvalidSource, fmt.Sprintf("%T", source), nil)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	order, err := n.schema.ingestOrder(keys)
	if err != nil {
		return err
	}

	prevKeys := append([]string(nil), n.keys...)
	prevState := maps.Clone(n.state)
	prevPrivate := maps.Clone(n.private)
	for _, k := range order {
		if err := n.Set(k, data[k]); err != nil {
			n.keys, n.state, n.private = prevKeys, prevState, prevPrivate
			return fmt.Errorf("ingest %s: %w", label, err)
		}
	}
	if path != "" {
		n.source = path
	}
	return nil
}
