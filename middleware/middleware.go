// Package middleware validates HTTP requests against an OpenAPI document
// before they reach the handler.
package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/reoring/oaskema/internal/logging"
	"github.com/reoring/oaskema/openapi"
)

// DocumentSource yields the document to validate against. *registry.Registry
// implements it.
type DocumentSource interface {
	Current() *openapi.Document
}

type static struct{ doc *openapi.Document }

func (s static) Current() *openapi.Document { return s.doc }

// Static wraps a fixed document as a DocumentSource.
func Static(doc *openapi.Document) DocumentSource { return static{doc} }

// Options configures Validate.
type Options struct {
	// ValidateParameters also checks path, query and header parameters.
	ValidateParameters bool
	// RejectUnknown answers 404 for requests matching no operation instead of
	// passing them through.
	RejectUnknown bool
	Metrics       *Metrics
	Logger        *slog.Logger
}

// Validate returns chi-compatible middleware. The operation is found from
// chi's matched route pattern when the middleware runs inside a route (for
// example via chi.With); otherwise the request path is matched against the
// document's path templates. The request body is restored for next.
func Validate(src DocumentSource, opts Options) func(http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			doc := src.Current()
			if doc == nil {
				log.Error("no document loaded")
				writeError(w, http.StatusServiceUnavailable, simple(CodeDocumentUnavailable, "", errors.New("oaskema: no document loaded")))
				return
			}
			op, params, err := resolve(doc, r)
			if err != nil {
				opts.Metrics.observe(ResultSkipped, "", 0)
				if opts.RejectUnknown {
					status, payload := NewErrorPayload(err)
					writeError(w, status, payload)
					return
				}
				log.Debug("no operation for request", "method", r.Method, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			err = check(doc, op, params, r, opts.ValidateParameters)
			elapsed := time.Since(start).Seconds()
			if err != nil {
				status, payload := NewErrorPayload(err)
				opts.Metrics.observe(ResultInvalid, payload.Error.Code, elapsed)
				log.Info("request rejected",
					"method", op.Method,
					"operation", op.Path,
					"code", payload.Error.Code,
					"path", payload.Error.Path,
					"error", err,
				)
				writeError(w, status, payload)
				return
			}
			opts.Metrics.observe(ResultValid, "", elapsed)
			next.ServeHTTP(w, r)
		})
	}
}

func resolve(doc *openapi.Document, r *http.Request) (*openapi.Operation, map[string]string, error) {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			op, err := doc.Operation(r.Method, pattern)
			if err == nil {
				params := make(map[string]string, len(rctx.URLParams.Keys))
				for i, k := range rctx.URLParams.Keys {
					params[k] = rctx.URLParams.Values[i]
				}
				return op, params, nil
			}
		}
	}
	return doc.Match(r)
}

func check(doc *openapi.Document, op *openapi.Operation, params map[string]string, r *http.Request, withParams bool) error {
	if withParams {
		if err := op.ValidatePathParams(params); err != nil {
			return err
		}
		if err := op.ValidateQuery(r.URL.Query()); err != nil {
			return err
		}
		if err := op.ValidateHeaders(r.Header); err != nil {
			return err
		}
	}
	if op.Raw().RequestBody == nil {
		return nil
	}
	var data []byte
	if r.Body != nil {
		var err error
		data, err = readBody(r.Body, doc.Options().Decode.MaxBytes)
		r.Body.Close()
		if err != nil {
			return err
		}
		r.Body = io.NopCloser(bytes.NewReader(data))
	}
	return op.ValidateRequestBodyBytes(r.Header.Get("Content-Type"), data)
}

// readBody reads at most one byte past limit so the decoder can report the
// oversize body itself.
func readBody(body io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		body = io.LimitReader(body, limit+1)
	}
	return io.ReadAll(body)
}

func writeError(w http.ResponseWriter, status int, payload ErrorPayload) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
