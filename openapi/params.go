package openapi

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/reoring/oaskema/schema"
)

// paramSet is the compiled view of the parameters declared for one location
// (path, query, header or cookie). Each location is validated as one object
// whose keys are parameter names; undeclared keys are allowed.
type paramSet struct {
	node  schema.NodeID
	specs map[string]*openapi3.Parameter
}

// paramName normalizes a parameter name for its location. Header names are
// matched case-insensitively.
func paramName(in, name string) string {
	if in == openapi3.ParameterInHeader {
		return strings.ToLower(name)
	}
	return name
}

func (c *compiler) compileOperations(t *openapi3.T) []*Operation {
	if t.Paths == nil {
		return nil
	}
	items := t.Paths.Map()
	paths := make([]string, 0, len(items))
	for p := range items {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []*Operation
	for _, path := range paths {
		item := items[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			raw := ops[m]
			where := "#/paths/" + strings.ReplaceAll(strings.ReplaceAll(path, "~", "~0"), "/", "~1") + "/" + strings.ToLower(m)
			op := &Operation{Method: m, Path: path, ID: raw.OperationID, raw: raw}
			if raw.RequestBody != nil && raw.RequestBody.Value != nil {
				c.compileContent(raw.RequestBody.Value.Content, where+"/requestBody")
			}
			if raw.Responses != nil {
				for status, ref := range raw.Responses.Map() {
					if ref != nil && ref.Value != nil {
						c.compileContent(ref.Value.Content, where+"/responses/"+status)
					}
				}
			}
			op.params = c.compileParams(item.Parameters, raw.Parameters, where)
			out = append(out, op)
		}
	}
	return out
}

func (c *compiler) compileContent(content openapi3.Content, where string) {
	mimes := make([]string, 0, len(content))
	for mt := range content {
		mimes = append(mimes, mt)
	}
	sort.Strings(mimes)
	for _, mt := range mimes {
		if m := content[mt]; m != nil {
			c.node(m.Schema, where+"/content/"+mt+"/schema")
		}
	}
}

// compileParams merges path-level and operation-level parameters (the latter
// win on the same name and location) into one object node per location.
func (c *compiler) compileParams(pathLevel, opLevel openapi3.Parameters, where string) map[string]*paramSet {
	type key struct{ in, name string }
	merged := make(map[key]*openapi3.Parameter)
	for _, list := range []openapi3.Parameters{pathLevel, opLevel} {
		for _, ref := range list {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			merged[key{p.In, paramName(p.In, p.Name)}] = p
		}
	}
	byIn := make(map[string][]string)
	for k := range merged {
		byIn[k.in] = append(byIn[k.in], k.name)
	}
	out := make(map[string]*paramSet, len(byIn))
	for in, names := range byIn {
		sort.Strings(names)
		set := &paramSet{specs: make(map[string]*openapi3.Parameter, len(names))}
		var props []schema.Property
		var required []string
		for _, name := range names {
			p := merged[key{in, name}]
			set.specs[name] = p
			props = append(props, schema.Property{
				Name:   name,
				Schema: c.node(p.Schema, where+"/parameters/"+in+"/"+name),
			})
			if p.Required || in == openapi3.ParameterInPath {
				required = append(required, name)
			}
		}
		set.node = c.b.Add(schema.Object{
			Properties: props,
			Required:   required,
			Additional: schema.Additional{Mode: schema.AdditionalAny},
		})
		out[in] = set
	}
	return out
}

// ValidateParameters validates raw string values for one parameter location.
// Values are coerced to the declared parameter types first: integers,
// numbers and booleans are parsed, and a single comma separated value of an
// array parameter is split. A value that does not parse stays a string and is
// reported as an invalid type.
func (op *Operation) ValidateParameters(in string, values map[string][]string) error {
	set := op.params[in]
	if set == nil {
		return nil
	}
	obj := make(map[string]any, len(values))
	for name, vs := range values {
		if len(vs) == 0 {
			continue
		}
		name = paramName(in, name)
		p, ok := set.specs[name]
		if !ok {
			obj[name] = vs[0]
			continue
		}
		obj[name] = coerceParam(p, vs)
	}
	return op.doc.v.Validate(set.node, obj)
}

// ValidateQuery validates query parameters.
func (op *Operation) ValidateQuery(q url.Values) error {
	return op.ValidateParameters(openapi3.ParameterInQuery, q)
}

// ValidatePathParams validates path parameters extracted by a router.
func (op *Operation) ValidatePathParams(params map[string]string) error {
	values := make(map[string][]string, len(params))
	for k, v := range params {
		values[k] = []string{v}
	}
	return op.ValidateParameters(openapi3.ParameterInPath, values)
}

// ValidateHeaders validates header parameters.
func (op *Operation) ValidateHeaders(h http.Header) error {
	return op.ValidateParameters(openapi3.ParameterInHeader, h)
}

func coerceParam(p *openapi3.Parameter, vs []string) any {
	if p.Schema == nil || p.Schema.Value == nil {
		return vs[0]
	}
	s := p.Schema.Value
	if s.Type.Is(openapi3.TypeArray) {
		if len(vs) == 1 && strings.Contains(vs[0], ",") {
			vs = strings.Split(vs[0], ",")
		}
		var items *openapi3.Types
		if s.Items != nil && s.Items.Value != nil {
			items = s.Items.Value.Type
		}
		arr := make([]any, len(vs))
		for i, v := range vs {
			arr[i] = coerceScalar(items, v)
		}
		return arr
	}
	return coerceScalar(s.Type, vs[0])
}

func coerceScalar(t *openapi3.Types, raw string) any {
	switch {
	case t.Includes(openapi3.TypeInteger):
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case t.Includes(openapi3.TypeNumber):
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case t.Includes(openapi3.TypeBoolean):
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	}
	return raw
}
