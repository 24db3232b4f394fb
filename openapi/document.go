package openapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/reoring/oaskema"
	"github.com/reoring/oaskema/schema"
)

var (
	// ErrOperationNotFound is returned when no operation matches a method and
	// path template.
	ErrOperationNotFound = errors.New("openapi: operation not found")
	// ErrContentTypeNotFound is returned when an operation declares no media
	// type matching the request or response content type.
	ErrContentTypeNotFound = errors.New("openapi: content type not declared")
	// ErrRequestBodyRequired is returned when a required request body is absent.
	ErrRequestBodyRequired = errors.New("openapi: request body is required")
	// ErrResponseNotFound is returned when an operation declares no response
	// for a status code and no default response.
	ErrResponseNotFound = errors.New("openapi: response not declared")
)

type opKey struct{ method, path string }

// Document is a compiled OpenAPI document.
type Document struct {
	t     *openapi3.T
	g     *schema.Graph
	v     *oaskema.Validator
	memo  map[*openapi3.Schema]schema.NodeID
	anyID schema.NodeID
	diag  Diag
	opts  Options
	ops   map[opKey]*Operation

	routerOnce sync.Once
	router     routers.Router
	routerErr  error
}

func newDocument(t *openapi3.T, g *schema.Graph, c *compiler, d Diag, opts Options) *Document {
	doc := &Document{
		t:     t,
		g:     g,
		v:     oaskema.New(g, opts.Validation),
		memo:  c.memo,
		anyID: c.anyID,
		diag:  d,
		opts:  opts,
		ops:   make(map[opKey]*Operation),
	}
	return doc
}

func (d *Document) T() *openapi3.T                { return d.t }
func (d *Document) Graph() *schema.Graph          { return d.g }
func (d *Document) Validator() *oaskema.Validator { return d.v }
func (d *Document) Diag() Diag                    { return d.diag }
func (d *Document) Options() Options              { return d.opts }

// Title returns info.title, or "" when the document has no info object.
func (d *Document) Title() string {
	if d.t.Info == nil {
		return ""
	}
	return d.t.Info.Title
}

// Schema returns the node of a named component schema.
func (d *Document) Schema(name string) (schema.NodeID, bool) { return d.g.Lookup(name) }

// Validate checks value against node id with the document's options.
func (d *Document) Validate(id schema.NodeID, value any) error {
	return d.v.Validate(id, value)
}

// Operation returns the operation declared for method on the path template
// (for example "/pets/{petId}").
func (d *Document) Operation(method, path string) (*Operation, error) {
	op, ok := d.ops[opKey{strings.ToUpper(method), path}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrOperationNotFound, strings.ToUpper(method), path)
	}
	return op, nil
}

// Operations returns every operation ordered by path, then method.
func (d *Document) Operations() []*Operation {
	out := make([]*Operation, 0, len(d.ops))
	for _, op := range d.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Lookup returns the request body node for an operation and content type.
func (d *Document) Lookup(method, path, contentType string) (schema.NodeID, error) {
	op, err := d.Operation(method, path)
	if err != nil {
		return schema.Invalid, err
	}
	return op.RequestNode(contentType)
}

// Match resolves a concrete request (for example GET /pets/42) to its
// operation and path parameter values.
func (d *Document) Match(r *http.Request) (*Operation, map[string]string, error) {
	d.routerOnce.Do(func() {
		d.router, d.routerErr = legacy.NewRouter(d.t, openapi3.DisableExamplesValidation(), openapi3.DisableSchemaDefaultsValidation())
	})
	if d.routerErr != nil {
		return nil, nil, fmt.Errorf("openapi: router: %w", d.routerErr)
	}
	route, params, err := d.router.FindRoute(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrOperationNotFound, r.Method, r.URL.Path, err)
	}
	op, err := d.Operation(route.Method, route.Path)
	if err != nil {
		return nil, nil, err
	}
	return op, params, nil
}

func (d *Document) nodeOf(ref *openapi3.SchemaRef) schema.NodeID {
	if ref == nil || ref.Value == nil {
		return d.anyID
	}
	if id, ok := d.memo[ref.Value]; ok {
		return id
	}
	return d.anyID
}

// Operation is one method on one path template.
type Operation struct {
	Method string
	Path   string
	ID     string

	doc    *Document
	raw    *openapi3.Operation
	params map[string]*paramSet
}

// Raw returns the kin-openapi operation.
func (op *Operation) Raw() *openapi3.Operation { return op.raw }

// RequestNode returns the node validating request bodies of contentType.
func (op *Operation) RequestNode(contentType string) (schema.NodeID, error) {
	rb := op.requestBody()
	if rb == nil {
		return schema.Invalid, fmt.Errorf("%w: %s %s has no request body", ErrContentTypeNotFound, op.Method, op.Path)
	}
	mt := rb.Content.Get(contentType)
	if mt == nil {
		return schema.Invalid, fmt.Errorf("%w: %s %s request %q", ErrContentTypeNotFound, op.Method, op.Path, contentType)
	}
	return op.doc.nodeOf(mt.Schema), nil
}

// ValidateRequestBody validates a decoded request body. A nil body stands for
// an absent one: it fails only when the body is required.
func (op *Operation) ValidateRequestBody(contentType string, body any) error {
	rb := op.requestBody()
	if rb == nil {
		return nil
	}
	if body == nil {
		if rb.Required {
			return fmt.Errorf("%w: %s %s", ErrRequestBodyRequired, op.Method, op.Path)
		}
		return nil
	}
	id, err := op.RequestNode(contentType)
	if err != nil {
		return err
	}
	return op.doc.v.Validate(id, body)
}

// ValidateRequestBodyBytes decodes data by contentType and validates it.
// Empty data is an absent body.
func (op *Operation) ValidateRequestBodyBytes(contentType string, data []byte) error {
	if len(data) == 0 {
		return op.ValidateRequestBody(contentType, nil)
	}
	if _, err := op.RequestNode(contentType); err != nil {
		return err
	}
	body, err := oaskema.DecodeBody(contentType, data, op.doc.opts.Decode)
	if err != nil {
		return err
	}
	return op.ValidateRequestBody(contentType, body)
}

// ResponseNode returns the node validating response bodies for status and
// contentType. Status resolution tries the exact code, then its NXX range,
// then the default response.
func (op *Operation) ResponseNode(status int, contentType string) (schema.NodeID, error) {
	var ref *openapi3.ResponseRef
	if op.raw.Responses != nil {
		ref = op.raw.Responses.Status(status)
		if ref == nil {
			ref = op.raw.Responses.Default()
		}
	}
	if ref == nil || ref.Value == nil {
		return schema.Invalid, fmt.Errorf("%w: %s %s status %d", ErrResponseNotFound, op.Method, op.Path, status)
	}
	mt := ref.Value.Content.Get(contentType)
	if mt == nil {
		return schema.Invalid, fmt.Errorf("%w: %s %s response %d %q", ErrContentTypeNotFound, op.Method, op.Path, status, contentType)
	}
	return op.doc.nodeOf(mt.Schema), nil
}

// ValidateResponseBody validates a decoded response body.
func (op *Operation) ValidateResponseBody(status int, contentType string, body any) error {
	id, err := op.ResponseNode(status, contentType)
	if err != nil {
		return err
	}
	return op.doc.v.Validate(id, body)
}

func (op *Operation) requestBody() *openapi3.RequestBody {
	if op.raw.RequestBody == nil {
		return nil
	}
	return op.raw.RequestBody.Value
}
