package inheritance

import (
	"fmt"

	"git.home.luguber.info/inful/docweave/internal/confnode"
)

// Reference points at the base unit a unit inherits from.
type Reference struct {
	File string
	Ref  string

	base     *Unit
	resolved bool
}

// Resolved reports whether the base has been merged.
func (r *Reference) Resolved() bool { return r.resolved }

func parseReference(kind *Kind, v any) (*Reference, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("source must be a mapping with file and ref, got %T", v)
	}
	file, _ := m["file"].(string)
	ref, _ := m["ref"].(string)
	if ref == "" && kind.RefOf != nil {
		ref = kind.RefOf(m)
	}
	if file == "" || ref == "" {
		return nil, fmt.Errorf("source needs both file and ref")
	}
	return &Reference{File: file, Ref: ref}, nil
}

// Unit is one content record.
type Unit struct {
	kind   *Kind
	file   string
	ref    string
	node   *confnode.Node
	source *Reference
}

// NewUnit builds a unit from a decoded document. The source (or inherit)
// mapping becomes the unit's Reference; a unit without its own ref takes
// the referenced one.
func NewUnit(kind *Kind, doc map[string]any, root *confnode.Node) (*Unit, error) {
	u := &Unit{kind: kind}
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case "source", "inherit":
			ref, err := parseReference(kind, v)
			if err != nil {
				return nil, err
			}
			u.source = ref
		default:
			fields[k] = v
		}
	}
	if _, ok := fields["ref"]; !ok {
		switch {
		case kind.RefOf != nil && kind.RefOf(fields) != "":
			fields["ref"] = kind.RefOf(fields)
		case u.source != nil:
			fields["ref"] = u.source.Ref
		}
	}

	var err error
	if root == nil {
		u.node = confnode.New(kind.Schema)
	} else if u.node, err = confnode.NewChild(kind.Schema, root); err != nil {
		return nil, err
	}
	if err := u.node.Ingest(fields); err != nil {
		return nil, err
	}
	u.ref = u.node.StringOr("ref", "")
	return u, nil
}

func (u *Unit) Ref() string  { return u.ref }
func (u *Unit) File() string { return u.file }
func (u *Unit) Kind() *Kind  { return u.kind }

// Source returns the inheritance reference, nil when the unit stands alone.
func (u *Unit) Source() *Reference { return u.source }

// InheritedFiles lists the files of every base unit up the inheritance
// chain, nearest first. Only resolved links are followed.
func (u *Unit) InheritedFiles() []string {
	var out []string
	seen := map[string]bool{}
	for cur := u; cur.source != nil && cur.source.base != nil; cur = cur.source.base {
		f := cur.source.base.file
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// IsResolved reports whether the unit has no base or its base is merged.
func (u *Unit) IsResolved() bool {
	return u.source == nil || u.source.resolved
}

// Node returns the unit's fields. It fails for unresolved units.
func (u *Unit) Node() (*confnode.Node, error) {
	if !u.IsResolved() {
		return nil, inheritanceError(ErrUnresolved, "content unit read before resolution", u.file, u.ref)
	}
	return u.node, nil
}

// Get reads one field of a resolved unit.
func (u *Unit) Get(name string) (any, error) {
	n, err := u.Node()
	if err != nil {
		return nil, err
	}
	return n.Get(name)
}

// Has reports whether a resolved unit stores name. Unresolved units report false.
func (u *Unit) Has(name string) bool {
	n, err := u.Node()
	return err == nil && n.Has(name)
}

// Replacement returns the merged replacement map.
func (u *Unit) Replacement() map[string]any {
	if c, err := u.node.Child("replacement"); err == nil {
		return c.Dict(false)
	}
	return map[string]any{}
}

// Dict renders a resolved unit as plain maps.
func (u *Unit) Dict() (map[string]any, error) {
	n, err := u.Node()
	if err != nil {
		return nil, err
	}
	return n.Dict(false), nil
}

type unitKey struct{ file, ref string }

// Resolve merges the unit's base into it, resolving the base first.
// Resolving an already resolved unit does nothing.
func (u *Unit) Resolve(c *Cache) error {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()
	return u.resolve(c, map[unitKey]bool{})
}

func (u *Unit) resolve(c *Cache, resolving map[unitKey]bool) error {
	if u.IsResolved() {
		return nil
	}
	self := unitKey{u.file, u.ref}
	resolving[self] = true
	defer delete(resolving, self)

	baseFile, err := c.locate(u.source.File)
	if err != nil {
		return err
	}
	base, ok := baseFile.Lookup(u.source.Ref)
	if !ok {
		return inheritanceError(ErrReferenceNotFound, fmt.Sprintf("ref %q not found in %s", u.source.Ref, baseFile.Path()), baseFile.Path(), u.source.Ref)
	}
	if resolving[unitKey{base.file, base.ref}] {
		return inheritanceError(ErrCyclicInheritance, fmt.Sprintf("%s:%s inherits from itself", u.file, u.ref), u.file, u.ref)
	}
	if err := base.resolve(c, resolving); err != nil {
		return err
	}

	childRepl, hasRepl := u.node.Raw("replacement")
	u.node.MergeUnder(base.node)
	if hasRepl {
		merged := base.Replacement()
		if own, ok := childRepl.(*confnode.Node); ok {
			for k, v := range own.Dict(false) {
				merged[k] = v
			}
		}
		u.node.Delete("replacement")
		if err := u.node.Set("replacement", merged); err != nil {
			return err
		}
	}
	u.source.base = base
	u.source.resolved = true
	return nil
}
