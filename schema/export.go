package schema

import (
	"fmt"

	js "github.com/reoring/oaskema/jsonschema"
)

// JSONSchema projects the node id into a JSON Schema representation. Named
// nodes below the root are emitted as component references, so cyclic
// documents export finitely.
func (g *Graph) JSONSchema(id NodeID) (*js.Schema, error) {
	if !g.Valid(id) {
		return nil, fmt.Errorf("schema: export: invalid node %d", id)
	}
	e := &exporter{g: g, active: make(map[NodeID]bool)}
	return e.export(id, true)
}

type exporter struct {
	g      *Graph
	active map[NodeID]bool
}

func (e *exporter) ref(id NodeID) (*js.Schema, error) { return e.export(id, false) }

func (e *exporter) export(id NodeID, root bool) (*js.Schema, error) {
	n := e.g.Node(id)
	if !root && n.name != "" {
		return &js.Schema{Ref: js.RefPrefix + n.name}, nil
	}
	if e.active[id] {
		return nil, fmt.Errorf("schema: export: cycle through unnamed node %d", id)
	}
	e.active[id] = true
	defer delete(e.active, id)

	out := &js.Schema{Title: n.name, Nullable: n.nullable}
	switch n.shape {
	case ShapeAny:
	case ShapePrimitive:
		out.Type = string(n.typ)
	case ShapeArray:
		out.Type = "array"
		it, err := e.ref(n.items)
		if err != nil {
			return nil, err
		}
		out.Items = it
	case ShapeObject:
		out.Type = "object"
	case ShapeComposite:
		members := make([]*js.Schema, 0, len(n.members))
		for _, m := range n.members {
			ms, err := e.ref(m)
			if err != nil {
				return nil, err
			}
			members = append(members, ms)
		}
		switch n.op {
		case AllOf:
			out.AllOf = members
		case OneOf:
			out.OneOf = members
		case AnyOf:
			out.AnyOf = members
		}
	}
	if n.shape == ShapeObject || n.shape == ShapeComposite {
		if err := e.objectParts(n, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *exporter) objectParts(n *Node, out *js.Schema) error {
	if len(n.properties) > 0 {
		out.Properties = make(map[string]*js.Schema, len(n.properties))
		for _, p := range n.properties {
			ps, err := e.ref(p.Schema)
			if err != nil {
				return err
			}
			out.Properties[p.Name] = ps
		}
	}
	out.Required = append([]string(nil), n.required...)
	switch n.additional.Mode {
	case AdditionalDisallowed:
		out.AdditionalProperties = false
	case AdditionalAny:
		out.AdditionalProperties = true
	case AdditionalTyped:
		as, err := e.ref(n.additional.Schema)
		if err != nil {
			return err
		}
		out.AdditionalProperties = as
	}
	if d := n.discriminator; d != nil {
		jd := &js.Discriminator{PropertyName: d.PropertyName}
		for tag, m := range d.Mapping {
			if jd.Mapping == nil {
				jd.Mapping = make(map[string]string, len(d.Mapping))
			}
			if name := e.g.Node(m).name; name != "" {
				jd.Mapping[tag] = js.RefPrefix + name
			} else {
				jd.Mapping[tag] = fmt.Sprintf("#node/%d", m)
			}
		}
		out.Discriminator = jd
	}
	return nil
}
