package oaskema

import (
	"fmt"

	"github.com/reoring/oaskema/schema"
)

// Validator checks values against nodes of one immutable schema graph. It holds
// no per-call state and is safe for concurrent use.
type Validator struct {
	g    *schema.Graph
	opts Options
}

// New returns a Validator over g. The last Options value wins when several
// are given.
func New(g *schema.Graph, opts ...Options) *Validator {
	var o Options
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	return &Validator{g: g, opts: o}
}

// Graph returns the graph the validator reads.
func (v *Validator) Graph() *schema.Graph { return v.g }

// Options returns the validator's options.
func (v *Validator) Options() Options { return v.opts }

// Validate checks value against the node root. It returns nil on success, a
// *ValidationError on the first failure, or ValidationErrors when
// Options.CollectAll is set.
func (v *Validator) Validate(root schema.NodeID, value any) error {
	if v.g == nil || !v.g.Valid(root) {
		return fmt.Errorf("oaskema: invalid root node %d", root)
	}
	r := &run{g: v.g, opts: v.opts, max: v.opts.maxDepth(), collect: v.opts.CollectAll}
	r.validate(root, value, nil, 0, false)
	switch {
	case len(r.errs) == 0:
		return nil
	case r.collect:
		return r.errs
	default:
		return r.errs[0]
	}
}

// Validate is a convenience wrapper around New(g, opts...).Validate.
func Validate(g *schema.Graph, root schema.NodeID, value any, opts ...Options) error {
	return New(g, opts...).Validate(root, value)
}

// run is the state of one validation call. It is never shared between calls.
type run struct {
	g       *schema.Graph
	opts    Options
	max     int
	collect bool
	errs    ValidationErrors
}

// trial returns a fail-fast run for evaluating a composition member without
// recording its errors in r.
func (r *run) trial() *run {
	return &run{g: r.g, opts: r.opts, max: r.max}
}

func (r *run) report(e *ValidationError) { r.errs = append(r.errs, e) }

// stopping reports whether the caller must unwind after a failure.
func (r *run) stopping() bool { return !r.collect && len(r.errs) > 0 }

// validate dispatches value by the shape of node id. suppressDisc is set when
// an object-level discriminator already selected id for this value.
func (r *run) validate(id schema.NodeID, value any, path Path, depth int, suppressDisc bool) bool {
	if depth > r.max {
		r.report(&ValidationError{
			Kind:    DepthExceeded,
			Path:    path,
			Message: fmt.Sprintf("validation depth limit %d exceeded at %s", r.max, path),
		})
		return false
	}
	n := r.g.Node(id)
	if value == nil && n.Nullable() {
		return true
	}
	switch n.Shape() {
	case schema.ShapeAny:
		return true
	case schema.ShapePrimitive:
		return r.primitive(n, value, path)
	case schema.ShapeArray:
		return r.array(n, value, path, depth)
	case schema.ShapeObject, schema.ShapeComposite:
		return r.objectLike(n, value, path, depth, suppressDisc)
	}
	return true
}

func (r *run) primitive(n *schema.Node, value any, path Path) bool {
	if matchesType(n.Type(), value) {
		return true
	}
	r.report(invalidType(value, string(n.Type()), path))
	return false
}

func (r *run) array(n *schema.Node, value any, path Path, depth int) bool {
	items, ok := asArray(value)
	if !ok {
		r.report(invalidType(value, "array", path))
		return false
	}
	valid := true
	for i, el := range items {
		if !r.validate(n.Items(), el, path.Index(i), depth+1, false) {
			valid = false
			if r.stopping() {
				return false
			}
		}
	}
	return valid
}

// objectLike validates object and composite nodes: optional discriminator
// dispatch, then composition resolution, then the property checks.
func (r *run) objectLike(n *schema.Node, value any, path Path, depth int, suppressDisc bool) bool {
	if d := n.Discriminator(); d != nil && !suppressDisc && dispatchesInPlace(n) {
		m, ok := asObject(value)
		if !ok {
			r.report(invalidType(value, "object", path))
			return false
		}
		target, ok := r.discriminate(d, m, path)
		if !ok {
			return false
		}
		if target != n.ID() {
			return r.validate(target, value, path, depth+1, true)
		}
	}
	e := newEffective()
	e.collect(r.g, n.ID())
	e.additional = n.Additional()
	return r.evaluate(e, value, path, depth)
}

// dispatchesInPlace reports whether n's discriminator replaces n by the mapped
// schema (object and allOf nodes) rather than selecting a oneOf/anyOf branch.
func dispatchesInPlace(n *schema.Node) bool {
	return n.Shape() == schema.ShapeObject || (n.Shape() == schema.ShapeComposite && n.Op() == schema.AllOf)
}
