// Package schema holds the compiled, immutable schema graph that validation
// runs against. Nodes live in an arena owned by Graph and reference each other
// through NodeID handles, so self-referential documents are representable
// without pointer cycles.
package schema

import "slices"

// NodeID addresses a node inside a Graph.
type NodeID int32

// Invalid is the zero-value sentinel for "no node".
const Invalid NodeID = -1

// Shape identifies which variant of Node is active. Exactly one shape applies
// per node.
type Shape int

const (
	ShapeAny Shape = iota
	ShapePrimitive
	ShapeObject
	ShapeArray
	ShapeComposite
)

func (s Shape) String() string {
	switch s {
	case ShapeAny:
		return "any"
	case ShapePrimitive:
		return "primitive"
	case ShapeObject:
		return "object"
	case ShapeArray:
		return "array"
	case ShapeComposite:
		return "composite"
	}
	return "unknown"
}

// Type is a JSON primitive type name.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeNull    Type = "null"
)

// Op is the combinator of a composite node.
type Op int

const (
	AllOf Op = iota
	OneOf
	AnyOf
)

func (o Op) String() string {
	switch o {
	case AllOf:
		return "allOf"
	case OneOf:
		return "oneOf"
	case AnyOf:
		return "anyOf"
	}
	return "unknown"
}

// AdditionalMode is the additionalProperties policy of an object frame.
type AdditionalMode int

const (
	AdditionalUnset AdditionalMode = iota // Not declared; unknown keys are rejected.
	AdditionalDisallowed                  // additionalProperties: false
	AdditionalAny                         // additionalProperties: true or {}
	AdditionalTyped                       // additionalProperties: {schema}
)

// Additional is an additionalProperties policy. Schema is only meaningful for
// AdditionalTyped.
type Additional struct {
	Mode   AdditionalMode
	Schema NodeID
}

// Permissive reports whether unknown keys are structurally accepted.
func (a Additional) Permissive() bool {
	return a.Mode == AdditionalAny || a.Mode == AdditionalTyped
}

// Property is one declared object property.
type Property struct {
	Name   string
	Schema NodeID
}

// Discriminator selects a member schema by the value of a named property.
type Discriminator struct {
	PropertyName string
	Mapping      map[string]NodeID
}

// Node is one compiled schema fragment. Nodes are read through Graph.Node and
// must not be modified.
type Node struct {
	id            NodeID
	name          string
	shape         Shape
	typ           Type
	nullable      bool
	properties    []Property
	propIndex     map[string]int
	required      []string
	additional    Additional
	items         NodeID
	op            Op
	members       []NodeID
	discriminator *Discriminator
}

func (n *Node) ID() NodeID             { return n.id }
func (n *Node) Name() string           { return n.name }
func (n *Node) Shape() Shape           { return n.shape }
func (n *Node) Type() Type             { return n.typ }
func (n *Node) Nullable() bool         { return n.nullable }
func (n *Node) Additional() Additional { return n.additional }
func (n *Node) Items() NodeID          { return n.items }
func (n *Node) Op() Op                 { return n.op }

// Properties returns a copy of the declared properties in declaration order.
func (n *Node) Properties() []Property { return slices.Clone(n.properties) }

// Required returns a copy of the required property names.
func (n *Node) Required() []string { return slices.Clone(n.required) }

// Members returns a copy of the composition members.
func (n *Node) Members() []NodeID { return slices.Clone(n.members) }

// Discriminator returns a copy of the node's discriminator, or nil.
func (n *Node) Discriminator() *Discriminator { return copyDiscriminator(n.discriminator) }

// Property looks up a locally declared property by name.
func (n *Node) Property(name string) (NodeID, bool) {
	i, ok := n.propIndex[name]
	if !ok {
		return Invalid, false
	}
	return n.properties[i].Schema, true
}

// HasObjectContent reports whether the node constrains object keys on its own
// (declared properties, required names, or an explicit additionalProperties).
func (n *Node) HasObjectContent() bool {
	return len(n.properties) > 0 || len(n.required) > 0 || n.additional.Mode != AdditionalUnset
}
