package schema

import (
	"errors"
	"fmt"
)

// Def describes the content of one node handed to a Builder. The set of
// implementations is closed: Any, Primitive, Object, Array and Composite.
type Def interface {
	shape() Shape
}

// Any is an unconstrained schema ({} without a type).
type Any struct {
	Nullable bool
}

// Primitive is a scalar schema.
type Primitive struct {
	Type     Type
	Nullable bool
}

// Object is an object schema with declared properties.
type Object struct {
	Properties    []Property
	Required      []string
	Additional    Additional
	Discriminator *Discriminator
	Nullable      bool
}

// Array is an array schema whose elements all match Items.
type Array struct {
	Items    NodeID
	Nullable bool
}

// Composite combines member schemas with allOf/oneOf/anyOf. It may declare
// local properties and required names that are merged with its members.
type Composite struct {
	Op            Op
	Members       []NodeID
	Properties    []Property
	Required      []string
	Additional    Additional
	Discriminator *Discriminator
	Nullable      bool
}

func (Any) shape() Shape       { return ShapeAny }
func (Primitive) shape() Shape { return ShapePrimitive }
func (Object) shape() Shape    { return ShapeObject }
func (Array) shape() Shape     { return ShapeArray }
func (Composite) shape() Shape { return ShapeComposite }

// Builder assembles a Graph. Nodes may be added directly with Add, or reserved
// first and defined later to express cycles. A Builder is not safe for
// concurrent use and cannot be reused after Build.
type Builder struct {
	nodes   []Node
	defined []bool
	names   map[string]NodeID
	errs    []error
	built   bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{names: make(map[string]NodeID)}
}

// Reserve allocates a handle whose content is supplied later with Define.
func (b *Builder) Reserve() NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, Node{id: id, items: Invalid})
	b.defined = append(b.defined, false)
	return id
}

// Add allocates and defines a node in one step.
func (b *Builder) Add(d Def) NodeID {
	id := b.Reserve()
	b.Define(id, d)
	return id
}

// Define supplies the content of a reserved handle. Errors are reported by
// Build.
func (b *Builder) Define(id NodeID, d Def) {
	if id < 0 || int(id) >= len(b.nodes) {
		b.errorf("define: handle %d out of range", id)
		return
	}
	if b.defined[id] {
		b.errorf("define: handle %d already defined", id)
		return
	}
	n := &b.nodes[id]
	n.shape = d.shape()
	switch t := d.(type) {
	case Any:
		n.nullable = t.Nullable
	case Primitive:
		n.typ = t.Type
		n.nullable = t.Nullable
	case Object:
		b.setObject(n, t.Properties, t.Required, t.Additional)
		n.discriminator = copyDiscriminator(t.Discriminator)
		n.nullable = t.Nullable
	case Array:
		n.items = t.Items
		n.nullable = t.Nullable
	case Composite:
		b.setObject(n, t.Properties, t.Required, t.Additional)
		n.op = t.Op
		n.members = append([]NodeID(nil), t.Members...)
		n.discriminator = copyDiscriminator(t.Discriminator)
		n.nullable = t.Nullable
	}
	b.defined[id] = true
}

// Name registers a component name for id.
func (b *Builder) Name(id NodeID, name string) {
	if prev, ok := b.names[name]; ok && prev != id {
		b.errorf("name %q already bound to node %d", name, prev)
		return
	}
	b.names[name] = id
	if id >= 0 && int(id) < len(b.nodes) && b.nodes[id].name == "" {
		b.nodes[id].name = name
	}
}

func (b *Builder) setObject(n *Node, props []Property, required []string, ap Additional) {
	n.properties = make([]Property, 0, len(props))
	n.propIndex = make(map[string]int, len(props))
	for _, p := range props {
		if _, dup := n.propIndex[p.Name]; dup {
			b.errorf("node %d: duplicate property %q", n.id, p.Name)
			continue
		}
		n.propIndex[p.Name] = len(n.properties)
		n.properties = append(n.properties, p)
	}
	seen := make(map[string]struct{}, len(required))
	for _, r := range required {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		n.required = append(n.required, r)
	}
	if ap.Mode != AdditionalTyped {
		ap.Schema = Invalid
	}
	n.additional = ap
}

func copyDiscriminator(d *Discriminator) *Discriminator {
	if d == nil {
		return nil
	}
	m := make(map[string]NodeID, len(d.Mapping))
	for k, v := range d.Mapping {
		m[k] = v
	}
	return &Discriminator{PropertyName: d.PropertyName, Mapping: m}
}

func (b *Builder) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("schema: "+format, args...))
}

// Build checks handle integrity and returns the immutable Graph.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, errors.New("schema: builder already used")
	}
	b.built = true
	for i := range b.nodes {
		if !b.defined[i] {
			b.errorf("node %d reserved but never defined", i)
			continue
		}
		b.checkHandles(&b.nodes[i])
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	g := &Graph{nodes: b.nodes, names: b.names}
	b.nodes, b.defined, b.names = nil, nil, nil
	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) checkHandles(n *Node) {
	valid := func(id NodeID) bool { return id >= 0 && int(id) < len(b.nodes) }
	for _, p := range n.properties {
		if !valid(p.Schema) {
			b.errorf("node %d: property %q references invalid node %d", n.id, p.Name, p.Schema)
		}
	}
	if n.additional.Mode == AdditionalTyped && !valid(n.additional.Schema) {
		b.errorf("node %d: additionalProperties references invalid node %d", n.id, n.additional.Schema)
	}
	switch n.shape {
	case ShapeArray:
		if !valid(n.items) {
			b.errorf("node %d: items references invalid node %d", n.id, n.items)
		}
	case ShapeComposite:
		if len(n.members) == 0 {
			b.errorf("node %d: %s without members", n.id, n.op)
		}
		for _, m := range n.members {
			if !valid(m) {
				b.errorf("node %d: %s member references invalid node %d", n.id, n.op, m)
			}
		}
	}
	if d := n.discriminator; d != nil {
		if d.PropertyName == "" {
			b.errorf("node %d: discriminator without propertyName", n.id)
		}
		for tag, m := range d.Mapping {
			if !valid(m) {
				b.errorf("node %d: discriminator mapping %q references invalid node %d", n.id, tag, m)
			}
		}
	}
}
