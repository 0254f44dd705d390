package scenario

import (
	"strings"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/types/optional"
)

// Node is the payload of every object a scenario allocates.
type Node struct {
	Type  string
	Name  string
	Hobby string

	Fields    []Field
	Introduce arc.Closure[string]

	deinit func(label string)
}

// Field is a named slot of a node. At most one handle is bound.
type Field struct {
	Name    string
	Strong  arc.Strong[*Node]
	Weak    arc.Weak[*Node]
	Unowned arc.Unowned[*Node]
}

func (n *Node) String() string {
	switch n.Type {
	case "Room":
		return "Room " + n.Name
	case "CreditCard", "Card":
		return "Card #" + n.Name
	default:
		return n.Name
	}
}

func (n *Node) Deinit() {
	if n.deinit != nil {
		n.deinit(n.String())
	}
}

// field returns the named field, adding it when create is set.
func (n *Node) field(name string, create bool) *Field {
	for i := range n.Fields {
		if n.Fields[i].Name == name {
			return &n.Fields[i]
		}
	}
	if !create {
		return nil
	}
	n.Fields = append(n.Fields, Field{Name: name})
	return &n.Fields[len(n.Fields)-1]
}

func (f *Field) clear() {
	f.Strong.Unbind()
	f.Weak.Unbind()
	f.Unowned.Unbind()
}

// set replaces the field's reference. to may be nil only for kind zero.
func (f *Field) set(kind arc.RefKind, to *arc.Strong[*Node]) {
	switch kind {
	case arc.RefStrong:
		// bind before clearing so that relinking the same node keeps it alive
		f.Strong.Bind(to)
		f.Weak.Unbind()
		f.Unowned.Unbind()
	case arc.RefWeak:
		f.Weak.Bind(to)
		f.Strong.Unbind()
		f.Unowned.Unbind()
	case arc.RefUnowned:
		f.Unowned.Bind(to)
		f.Strong.Unbind()
		f.Weak.Unbind()
	default:
		f.clear()
	}
}

// resolve returns a new strong handle to the field's referent, or nil.
// Reading an unowned field whose referent is gone is fatal.
func (f *Field) resolve() *arc.Strong[*Node] {
	switch {
	case f.Strong.IsBound():
		return f.Strong.Clone()
	case f.Weak.IsBound():
		return f.Weak.Upgrade()
	case f.Unowned.IsBound():
		return f.Unowned.Strong()
	}
	return nil
}

func introduce(n *Node) string {
	s := "My name is " + n.Name + "."
	if n.Hobby != "" {
		s += " My hobby is " + n.Hobby + "."
	}
	return s
}

// describe prints the nodes of a capture list, nil for the weak entries
// that are gone.
func describe(in *arc.Captures) string {
	names := make([]string, in.Len())
	for i := range names {
		names[i] = optional.Map(arc.Load[*Node](in, i), (*Node).String).GetOr("nil")
	}
	return strings.Join(names, " ")
}
