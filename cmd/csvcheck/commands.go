package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"field_inventory_backend/internal/imports/ingest"

	"github.com/spf13/cobra"
)

var errInvalidFile = errors.New("file has validation errors")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "csvcheck",
		Short:        "Validate feature import files against a schema",
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCmd(), newTemplateCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	var schemaPath string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate --schema schema.yaml file.csv",
		Short: "Check a CSV file and print its errors or rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchemaFile(schemaPath)
			if err != nil {
				return err
			}
			contents, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return runValidate(cmd.OutOrStdout(), contents, schema, quiet)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML schema file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print errors and the summary")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "template --schema schema.yaml",
		Short: "Print the CSV template for a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := loadSchemaFile(schemaPath)
			if err != nil {
				return err
			}
			body, err := ingest.Template(schema.Schema)
			if err != nil {
				return fmt.Errorf("render template: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML schema file")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// runValidate applies upload validation, normalization and the server-side
// re-check, then prints the findings. It returns errInvalidFile when any
// stage rejected the file.
func runValidate(out io.Writer, contents []byte, schema schemaFile, quiet bool) error {
	result := ingest.Validate(contents, schema.Schema)
	if !result.Valid() {
		printErrors(out, result.Errors)
		fmt.Fprintf(out, "%d error(s)\n", len(result.Errors))
		return errInvalidFile
	}

	rows, err := ingest.NormalizeAll(result.Rows, schema.Schema)
	if err != nil {
		fmt.Fprintf(out, "normalize: %v\n", err)
		return errInvalidFile
	}
	if errs := ingest.Revalidate(rows, schema.Schema); len(errs) > 0 {
		printErrors(out, errs)
		fmt.Fprintf(out, "%d error(s)\n", len(errs))
		return errInvalidFile
	}

	if !quiet {
		for _, row := range rows {
			fmt.Fprintf(out, "line %d: %.6f,%.6f %s %s\n", row.Line, row.Latitude, row.Longitude, row.Estado, formatAttributes(schema, row))
		}
	}
	fmt.Fprintf(out, "%d row(s) ready for %s\n", len(rows), schema.label())
	return nil
}

func printErrors(out io.Writer, errs []ingest.ValidationError) {
	for _, e := range errs {
		fmt.Fprintf(out, "line %d [%s]: %s\n", e.Line, e.Kind, e.Message)
	}
}

func formatAttributes(schema schemaFile, row ingest.ImportRow) string {
	var b strings.Builder
	for _, f := range schema.Schema.Fields {
		v, ok := row.Attributes[f.AttributeKey()]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.AttributeKey())
		b.WriteByte('=')
		if v == nil {
			b.WriteString("null")
			continue
		}
		b.WriteString(*v)
	}
	return b.String()
}
