package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reoring/oaskema/openapi"
)

func newInspectCmd(a *app) *cobra.Command {
	var spec, name string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List operations and schemas of a document",
		Long: `Without --schema, lists every operation with its request media types,
followed by the component schema names. With --schema, prints the compiled
component as JSON Schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := a.loadConfig(spec)
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
			if name != "" {
				return a.printSchema(doc, name)
			}
			return a.printOperations(doc)
		},
	}
	cmd.Flags().StringVar(&spec, "spec", "", "OpenAPI document (YAML or JSON)")
	cmd.Flags().StringVar(&name, "schema", "", "component schema to print as JSON Schema")
	return cmd
}

func (a *app) printSchema(doc *openapi.Document, name string) error {
	id, ok := doc.Schema(name)
	if !ok {
		return fmt.Errorf("no component schema %q", name)
	}
	js, err := doc.Graph().JSONSchema(id)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(out))
	return nil
}

func (a *app) printOperations(doc *openapi.Document) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tOPERATION\tREQUEST")
	for _, op := range doc.Operations() {
		var media []string
		if rb := op.Raw().RequestBody; rb != nil && rb.Value != nil {
			for mt := range rb.Value.Content {
				media = append(media, mt)
			}
			sort.Strings(media)
		}
		id := op.ID
		if id == "" {
			id = "-"
		}
		req := strings.Join(media, ",")
		if req == "" {
			req = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Method, op.Path, id, req)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	names := doc.Graph().Names()
	if len(names) > 0 {
		fmt.Fprintf(a.stdout, "\nschemas: %s\n", strings.Join(names, ", "))
	}
	return nil
}
