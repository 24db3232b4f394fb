package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reoring/oaskema"
	"github.com/reoring/oaskema/middleware"
	"github.com/reoring/oaskema/openapi"
)

type validateFlags struct {
	spec        string
	method      string
	path        string
	contentType string
	status      int
	schema      string
	output      string
}

func newValidateCmd(a *app) *cobra.Command {
	f := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate [BODY|-]",
		Short: "Validate a request or response body",
		Long: `Validates a JSON or YAML body read from a file (or stdin when BODY is "-" or
omitted) against an operation of an OpenAPI document.

The request body schema of --method/--path is used unless --status selects a
response, or --schema names a component schema directly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd.Context(), f, args)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.spec, "spec", "", "OpenAPI document (YAML or JSON)")
	fl.StringVarP(&f.method, "method", "X", "POST", "operation method")
	fl.StringVarP(&f.path, "path", "p", "", "operation path template, e.g. /pets/{petId}")
	fl.StringVarP(&f.contentType, "content-type", "t", "application/json", "body media type")
	fl.IntVar(&f.status, "status", 0, "validate as the response body for this status code")
	fl.StringVar(&f.schema, "schema", "", "validate against a component schema instead of an operation")
	fl.StringVarP(&f.output, "output", "o", "text", "output format: text or json")
	return cmd
}

func (a *app) runValidate(ctx context.Context, f *validateFlags, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.output != "text" && f.output != "json" {
		return fmt.Errorf("unknown output format %q", f.output)
	}
	if f.path == "" && f.schema == "" {
		return errors.New("one of --path or --schema is required")
	}
	cfg, err := a.loadConfig(f.spec)
	if err != nil {
		return err
	}
	doc, err := openapi.LoadFile(ctx, cfg.Spec, cfg.OpenAPIOptions())
	if err != nil {
		return err
	}
	for _, w := range doc.Diag().Warnings() {
		a.log.Warn("compile warning", "warning", w)
	}

	data, err := a.readBody(args)
	if err != nil {
		return err
	}
	a.log.Debug("validating", "spec", cfg.Spec, "method", f.method, "path", f.path, "status", f.status, "bytes", len(data))

	err = validateBody(doc, f, data)
	if err == nil {
		fmt.Fprintln(a.stdout, "ok")
		return nil
	}
	if f.output == "json" {
		_, payload := middleware.NewErrorPayload(err)
		out, merr := json.MarshalIndent(payload, "", "  ")
		if merr != nil {
			return merr
		}
		fmt.Fprintln(a.stdout, string(out))
		return errInvalid
	}
	var ves oaskema.ValidationErrors
	if errors.As(err, &ves) {
		for _, ve := range ves {
			fmt.Fprintf(a.stdout, "%s: %s\n", ve.Kind, ve.Message)
		}
		return errInvalid
	}
	if ve, ok := oaskema.AsValidationError(err); ok {
		fmt.Fprintf(a.stdout, "%s: %s\n", ve.Kind, ve.Message)
		return errInvalid
	}
	return err
}

func validateBody(doc *openapi.Document, f *validateFlags, data []byte) error {
	if f.schema != "" {
		id, ok := doc.Schema(f.schema)
		if !ok {
			return fmt.Errorf("no component schema %q", f.schema)
		}
		body, err := oaskema.DecodeBody(f.contentType, data, doc.Options().Decode)
		if err != nil {
			return err
		}
		return doc.Validate(id, body)
	}
	op, err := doc.Operation(f.method, f.path)
	if err != nil {
		return err
	}
	if f.status == 0 {
		return op.ValidateRequestBodyBytes(f.contentType, data)
	}
	if _, err := op.ResponseNode(f.status, f.contentType); err != nil {
		return err
	}
	body, err := oaskema.DecodeBody(f.contentType, data, doc.Options().Decode)
	if err != nil {
		return err
	}
	return op.ValidateResponseBody(f.status, f.contentType, body)
}

func (a *app) readBody(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(args[0])
}
