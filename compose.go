package oaskema

import (
	"fmt"

	"github.com/reoring/oaskema/schema"
)

// effective is the merged obligation of one object frame: every allOf-reachable
// node contributes its properties and required names, non-object members are
// kept as direct obligations, and oneOf/anyOf nodes are kept as pending
// branch points.
type effective struct {
	required   []string
	reqSeen    map[string]struct{}
	props      []effectiveProp
	propIdx    map[string]int
	additional schema.Additional
	objectish  bool
	direct     []schema.NodeID
	branches   []*schema.Node
	visited    map[schema.NodeID]struct{}
}

// effectiveProp holds every node declaring one property name; a value must
// satisfy all of them.
type effectiveProp struct {
	name  string
	nodes []schema.NodeID
}

func newEffective() *effective {
	return &effective{
		reqSeen: make(map[string]struct{}),
		propIdx: make(map[string]int),
		visited: make(map[schema.NodeID]struct{}),
	}
}

func (e *effective) clone() *effective {
	c := &effective{
		required:   append([]string(nil), e.required...),
		reqSeen:    make(map[string]struct{}, len(e.reqSeen)),
		props:      make([]effectiveProp, len(e.props)),
		propIdx:    make(map[string]int, len(e.propIdx)),
		additional: e.additional,
		objectish:  e.objectish,
		direct:     append([]schema.NodeID(nil), e.direct...),
		branches:   append([]*schema.Node(nil), e.branches...),
		visited:    make(map[schema.NodeID]struct{}, len(e.visited)),
	}
	for k := range e.reqSeen {
		c.reqSeen[k] = struct{}{}
	}
	for i, p := range e.props {
		c.props[i] = effectiveProp{name: p.name, nodes: append([]schema.NodeID(nil), p.nodes...)}
	}
	for k, v := range e.propIdx {
		c.propIdx[k] = v
	}
	for k := range e.visited {
		c.visited[k] = struct{}{}
	}
	return c
}

// collect merges node id into e, flattening allOf recursively. Each node is
// merged at most once per frame, which also terminates cyclic allOf chains.
func (e *effective) collect(g *schema.Graph, id schema.NodeID) {
	if _, seen := e.visited[id]; seen {
		return
	}
	e.visited[id] = struct{}{}
	n := g.Node(id)
	switch n.Shape() {
	case schema.ShapeAny:
	case schema.ShapePrimitive, schema.ShapeArray:
		e.direct = append(e.direct, id)
	case schema.ShapeObject:
		e.objectish = true
		e.mergeLocal(n)
	case schema.ShapeComposite:
		if n.HasObjectContent() {
			e.objectish = true
		}
		e.mergeLocal(n)
		switch n.Op() {
		case schema.AllOf:
			for _, m := range n.Members() {
				e.collect(g, m)
			}
		case schema.OneOf, schema.AnyOf:
			e.branches = append(e.branches, n)
		}
	}
}

func (e *effective) mergeLocal(n *schema.Node) {
	for _, r := range n.Required() {
		if _, ok := e.reqSeen[r]; ok {
			continue
		}
		e.reqSeen[r] = struct{}{}
		e.required = append(e.required, r)
	}
	for _, p := range n.Properties() {
		if i, ok := e.propIdx[p.Name]; ok {
			e.props[i].nodes = appendUnique(e.props[i].nodes, p.Schema)
			continue
		}
		e.propIdx[p.Name] = len(e.props)
		e.props = append(e.props, effectiveProp{name: p.Name, nodes: []schema.NodeID{p.Schema}})
	}
}

func appendUnique(ids []schema.NodeID, id schema.NodeID) []schema.NodeID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

// adopt merges a selected oneOf/anyOf member. When the outer frame left
// additionalProperties unset, the member's own policy applies.
func (e *effective) adopt(g *schema.Graph, id schema.NodeID) {
	e.collect(g, id)
	if e.additional.Mode != schema.AdditionalUnset {
		return
	}
	if n := g.Node(id); n.Shape() == schema.ShapeObject || n.Shape() == schema.ShapeComposite {
		e.additional = n.Additional()
	}
}

// evaluate resolves pending branch points one at a time, then runs the object
// checks and direct obligations of the fully merged frame.
func (r *run) evaluate(e *effective, value any, path Path, depth int) bool {
	if len(e.branches) > 0 {
		return r.branch(e, value, path, depth)
	}
	valid := true
	if e.objectish {
		m, ok := asObject(value)
		if !ok {
			r.report(invalidType(value, "object", path))
			return false
		}
		if !r.validateObject(e, m, path, depth) {
			valid = false
			if r.stopping() {
				return false
			}
		}
	}
	for _, id := range e.direct {
		if !r.validate(id, value, path, depth+1, false) {
			valid = false
			if r.stopping() {
				return false
			}
		}
	}
	return valid
}

func (r *run) branch(e *effective, value any, path Path, depth int) bool {
	b := e.branches[0]
	rest := e.clone()
	rest.branches = rest.branches[1:]

	if d := b.Discriminator(); d != nil {
		m, ok := asObject(value)
		if !ok {
			r.report(invalidType(value, "object", path))
			return false
		}
		target, ok := r.discriminate(d, m, path)
		if !ok {
			return false
		}
		rest.adopt(r.g, target)
		return r.evaluate(rest, value, path, depth+1)
	}

	// Keys every branch requires are reported as missing keys, not as a
	// composition mismatch.
	if e.objectish {
		if m, ok := asObject(value); ok && !r.checkRequired(e.required, m, path) {
			return false
		}
	}

	matches := 0
	for _, member := range b.Members() {
		candidate := rest.clone()
		candidate.adopt(r.g, member)
		if r.trial().evaluate(candidate, value, path, depth+1) {
			matches++
			if b.Op() == schema.AnyOf || matches > 1 {
				break
			}
		}
	}
	switch {
	case b.Op() == schema.AnyOf && matches == 0:
		r.report(&ValidationError{
			Kind:    CompositionMismatch,
			Path:    path,
			Message: fmt.Sprintf("%s isn't any of anyOf members at %s", describeValue(value), path),
		})
		return false
	case b.Op() == schema.OneOf && matches == 0:
		r.report(&ValidationError{
			Kind:    CompositionMismatch,
			Path:    path,
			Message: fmt.Sprintf("%s isn't one of oneOf members at %s", describeValue(value), path),
		})
		return false
	case b.Op() == schema.OneOf && matches > 1:
		r.report(&ValidationError{
			Kind:    CompositionMismatch,
			Path:    path,
			Message: fmt.Sprintf("%s matches more than one of oneOf members at %s", describeValue(value), path),
		})
		return false
	}
	return true
}

// discriminate selects the mapped node for the discriminator value of m.
func (r *run) discriminate(d *schema.Discriminator, m map[string]any, path Path) (schema.NodeID, bool) {
	tag, ok := m[d.PropertyName].(string)
	if !ok {
		r.report(&ValidationError{
			Kind:    NotExistDiscriminatorProperty,
			Path:    path,
			Names:   []string{d.PropertyName},
			Message: fmt.Sprintf("discriminator propertyName %s does not exist in %s", d.PropertyName, path),
		})
		return schema.Invalid, false
	}
	target, ok := d.Mapping[tag]
	if !ok {
		at := path.Key(d.PropertyName)
		r.report(&ValidationError{
			Kind:    NotExistDiscriminatorMapping,
			Path:    at,
			Names:   []string{tag},
			Message: fmt.Sprintf("discriminator mapping key %s does not exist at %s", tag, at),
		})
		return schema.Invalid, false
	}
	return target, true
}
