// Package openapi compiles OpenAPI 3 documents into oaskema schema graphs and
// resolves operations to the nodes that validate their payloads.
//
// Documents are parsed and $ref-resolved by kin-openapi. Every schema the
// document reaches (components, request bodies, responses and parameters) is
// compiled once at load time; a loaded Document is immutable and safe for
// concurrent use.
package openapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Load parses an OpenAPI document from JSON or YAML bytes and compiles it.
func Load(ctx context.Context, data []byte, opts Options) (*Document, error) {
	l := newLoader(ctx, opts)
	t, err := l.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load: %w", err)
	}
	return compileDocument(ctx, t, opts)
}

// LoadFile is like Load but reads the document from path. Relative external
// refs resolve against path when Options.AllowExternalRefs is set.
func LoadFile(ctx context.Context, path string, opts Options) (*Document, error) {
	l := newLoader(ctx, opts)
	t, err := l.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("openapi: load %s: %w", path, err)
	}
	return compileDocument(ctx, t, opts)
}

// FromT compiles an already loaded kin-openapi document.
func FromT(ctx context.Context, t *openapi3.T, opts Options) (*Document, error) {
	if t == nil {
		return nil, errors.New("openapi: nil document")
	}
	return compileDocument(ctx, t, opts)
}

func newLoader(ctx context.Context, opts Options) *openapi3.Loader {
	l := openapi3.NewLoader()
	l.IsExternalRefsAllowed = opts.AllowExternalRefs
	l.Context = ctx
	return l
}

func compileDocument(ctx context.Context, t *openapi3.T, opts Options) (*Document, error) {
	if !opts.SkipDocumentValidation {
		if err := t.Validate(ctx); err != nil {
			return nil, fmt.Errorf("openapi: invalid document: %w", err)
		}
	}
	d := &simpleDiag{}
	c := newCompiler(t, d)
	c.compileComponents()
	ops := c.compileOperations(t)
	g, err := c.b.Build()
	if err != nil {
		return nil, fmt.Errorf("openapi: compile: %w", err)
	}
	doc := newDocument(t, g, c, d, opts)
	for _, op := range ops {
		op.doc = doc
		doc.ops[opKey{op.Method, op.Path}] = op
	}
	return doc, nil
}
