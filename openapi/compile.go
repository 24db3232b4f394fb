package openapi

import (
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/reoring/oaskema/schema"
)

const componentPrefix = "#/components/schemas/"

// compiler lowers kin-openapi schemas into schema graph nodes. Every distinct
// *openapi3.Schema becomes exactly one node; a node is reserved before its
// children are compiled so $ref cycles terminate.
type compiler struct {
	b          *schema.Builder
	d          *simpleDiag
	memo       map[*openapi3.Schema]schema.NodeID
	names      map[*openapi3.Schema]string
	components openapi3.Schemas
	anyID      schema.NodeID
}

func newCompiler(doc *openapi3.T, d *simpleDiag) *compiler {
	c := &compiler{
		b:     schema.NewBuilder(),
		d:     d,
		memo:  make(map[*openapi3.Schema]schema.NodeID),
		names: make(map[*openapi3.Schema]string),
	}
	c.anyID = c.b.Add(schema.Any{})
	if doc.Components != nil {
		c.components = doc.Components.Schemas
	}
	for name, ref := range c.components {
		if ref != nil && ref.Value != nil {
			if _, dup := c.names[ref.Value]; !dup {
				c.names[ref.Value] = name
			}
		}
	}
	return c
}

// compileComponents compiles every component schema in name order so node
// numbering is stable across loads.
func (c *compiler) compileComponents() {
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id := c.node(c.components[name], componentPrefix+name)
		c.b.Name(id, name)
	}
}

// node returns the node for ref, compiling it on first use.
func (c *compiler) node(ref *openapi3.SchemaRef, where string) schema.NodeID {
	if ref == nil {
		return c.anyID
	}
	if ref.Value == nil {
		c.d.warnf("%s: unresolved $ref %q treated as any", where, ref.Ref)
		return c.anyID
	}
	s := ref.Value
	if id, ok := c.memo[s]; ok {
		return id
	}
	id := c.b.Reserve()
	c.memo[s] = id
	if name, ok := c.names[s]; ok {
		c.b.Name(id, name)
		where = componentPrefix + name
	}
	c.define(id, s, where)
	return id
}

func (c *compiler) nodes(refs openapi3.SchemaRefs, where, kw string) []schema.NodeID {
	out := make([]schema.NodeID, 0, len(refs))
	for i, r := range refs {
		out = append(out, c.node(r, where+"/"+kw+"/"+strconv.Itoa(i)))
	}
	return out
}

// objectParts is the object content a schema declares locally.
type objectParts struct {
	props      []schema.Property
	required   []string
	additional schema.Additional
}

func (o objectParts) declared() bool {
	return len(o.props) > 0 || len(o.required) > 0 || o.additional.Mode != schema.AdditionalUnset
}

func (c *compiler) objectParts(s *openapi3.Schema, where string) objectParts {
	var o objectParts
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o.props = append(o.props, schema.Property{
			Name:   name,
			Schema: c.node(s.Properties[name], where+"/properties/"+name),
		})
	}
	o.required = append(o.required, s.Required...)
	ap := s.AdditionalProperties
	switch {
	case ap.Has != nil && !*ap.Has:
		o.additional = schema.Additional{Mode: schema.AdditionalDisallowed}
	case ap.Schema != nil:
		o.additional = schema.Additional{
			Mode:   schema.AdditionalTyped,
			Schema: c.node(ap.Schema, where+"/additionalProperties"),
		}
	case ap.Has != nil && *ap.Has:
		o.additional = schema.Additional{Mode: schema.AdditionalAny}
	}
	return o
}

type composition struct {
	op   schema.Op
	kw   string
	refs openapi3.SchemaRefs
}

func compositions(s *openapi3.Schema) []composition {
	var out []composition
	if len(s.AllOf) > 0 {
		out = append(out, composition{op: schema.AllOf, kw: "allOf", refs: s.AllOf})
	}
	if len(s.OneOf) > 0 {
		out = append(out, composition{op: schema.OneOf, kw: "oneOf", refs: s.OneOf})
	}
	if len(s.AnyOf) > 0 {
		out = append(out, composition{op: schema.AnyOf, kw: "anyOf", refs: s.AnyOf})
	}
	return out
}

// splitTypes returns the non-null types of s. A "null" entry, like the
// nullable keyword, makes the node accept null.
func splitTypes(s *openapi3.Schema) ([]string, bool) {
	nullable := s.Nullable
	var out []string
	for _, t := range s.Type.Slice() {
		if t == openapi3.TypeNull {
			nullable = true
			continue
		}
		out = append(out, t)
	}
	return out, nullable
}

func (c *compiler) define(id schema.NodeID, s *openapi3.Schema, where string) {
	if s.Not != nil {
		c.d.warnf("%s: not is not enforced", where)
	}
	types, nullable := splitTypes(s)
	obj := c.objectParts(s, where)
	comps := compositions(s)

	if len(comps) == 0 {
		c.b.Define(id, c.typed(types, s, obj, c.objectDiscriminator(s, where), nullable, where))
		return
	}

	var parts []schema.NodeID
	if len(types) > 0 && !(len(types) == 1 && types[0] == openapi3.TypeObject) {
		parts = append(parts, c.b.Add(c.typed(types, s, objectParts{additional: schema.Additional{Mode: schema.AdditionalAny}}, nil, false, where)))
	}

	if len(comps) == 1 && len(parts) == 0 {
		k := comps[0]
		var disc *schema.Discriminator
		if k.op == schema.AllOf {
			disc = c.objectDiscriminator(s, where)
		} else {
			disc = c.branchDiscriminator(s, k.refs, where)
		}
		c.b.Define(id, schema.Composite{
			Op:            k.op,
			Members:       c.nodes(k.refs, where, k.kw),
			Properties:    obj.props,
			Required:      obj.required,
			Additional:    obj.additional,
			Discriminator: disc,
			Nullable:      nullable,
		})
		return
	}

	// Several keywords on one schema all apply, so they are joined under an
	// allOf. A discriminator belongs to the first oneOf/anyOf if there is one.
	members := parts
	var outerDisc *schema.Discriminator
	branched := false
	for _, k := range comps {
		if k.op == schema.AllOf {
			members = append(members, c.nodes(k.refs, where, k.kw)...)
			continue
		}
		var disc *schema.Discriminator
		if !branched {
			disc = c.branchDiscriminator(s, k.refs, where)
			branched = true
		}
		members = append(members, c.b.Add(schema.Composite{
			Op:            k.op,
			Members:       c.nodes(k.refs, where, k.kw),
			Discriminator: disc,
		}))
	}
	if !branched {
		outerDisc = c.objectDiscriminator(s, where)
	}
	c.b.Define(id, schema.Composite{
		Op:            schema.AllOf,
		Members:       members,
		Properties:    obj.props,
		Required:      obj.required,
		Additional:    obj.additional,
		Discriminator: outerDisc,
		Nullable:      nullable,
	})
}

// typed builds the node for a schema without composition keywords.
func (c *compiler) typed(types []string, s *openapi3.Schema, obj objectParts, disc *schema.Discriminator, nullable bool, where string) schema.Def {
	switch len(types) {
	case 0:
		if obj.declared() || disc != nil {
			return schema.Object{Properties: obj.props, Required: obj.required, Additional: obj.additional, Discriminator: disc, Nullable: nullable}
		}
		return schema.Any{Nullable: nullable}
	case 1:
		switch types[0] {
		case openapi3.TypeObject:
			return schema.Object{Properties: obj.props, Required: obj.required, Additional: obj.additional, Discriminator: disc, Nullable: nullable}
		case openapi3.TypeArray:
			return schema.Array{Items: c.node(s.Items, where+"/items"), Nullable: nullable}
		case openapi3.TypeString, openapi3.TypeNumber, openapi3.TypeInteger, openapi3.TypeBoolean:
			return schema.Primitive{Type: schema.Type(types[0]), Nullable: nullable}
		}
		c.d.warnf("%s: unknown type %q treated as any", where, types[0])
		return schema.Any{Nullable: nullable}
	}
	members := make([]schema.NodeID, 0, len(types))
	for _, t := range types {
		members = append(members, c.b.Add(c.typed([]string{t}, s, obj, disc, false, where)))
	}
	return schema.Composite{Op: schema.AnyOf, Members: members, Nullable: nullable}
}

// branchDiscriminator resolves the discriminator of a oneOf/anyOf. Members
// referenced by component name are mapped implicitly by that name.
func (c *compiler) branchDiscriminator(s *openapi3.Schema, members openapi3.SchemaRefs, where string) *schema.Discriminator {
	if s.Discriminator == nil {
		return nil
	}
	d := c.explicitMapping(s.Discriminator, where)
	for _, m := range members {
		if m == nil || m.Value == nil {
			continue
		}
		name, ok := c.names[m.Value]
		if !ok {
			continue
		}
		if _, taken := d.Mapping[name]; !taken {
			d.Mapping[name] = c.node(m, componentPrefix+name)
		}
	}
	return d
}

// objectDiscriminator resolves a discriminator declared on an object or allOf
// schema. Components that extend s through allOf are mapped implicitly by
// their names, and s itself by its own name.
func (c *compiler) objectDiscriminator(s *openapi3.Schema, where string) *schema.Discriminator {
	if s.Discriminator == nil {
		return nil
	}
	d := c.explicitMapping(s.Discriminator, where)
	if base, ok := c.names[s]; ok {
		if _, taken := d.Mapping[base]; !taken {
			d.Mapping[base] = c.memo[s]
		}
	}
	names := make([]string, 0, len(c.components))
	for name := range c.components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref := c.components[name]
		if ref == nil || ref.Value == nil || ref.Value == s {
			continue
		}
		if _, taken := d.Mapping[name]; taken || !extends(ref.Value, s) {
			continue
		}
		d.Mapping[name] = c.node(ref, componentPrefix+name)
	}
	return d
}

func extends(child, base *openapi3.Schema) bool {
	for _, r := range child.AllOf {
		if r != nil && r.Value == base {
			return true
		}
	}
	return false
}

func (c *compiler) explicitMapping(src *openapi3.Discriminator, where string) *schema.Discriminator {
	d := &schema.Discriminator{PropertyName: src.PropertyName, Mapping: make(map[string]schema.NodeID, len(src.Mapping))}
	tags := make([]string, 0, len(src.Mapping))
	for tag := range src.Mapping {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		target := src.Mapping[tag]
		name := strings.TrimPrefix(target, componentPrefix)
		ref, ok := c.components[name]
		if !ok || strings.Contains(name, "/") {
			c.d.warnf("%s: discriminator mapping %q -> %q does not name a component schema", where, tag, target)
			continue
		}
		d.Mapping[tag] = c.node(ref, componentPrefix+name)
	}
	return d
}
