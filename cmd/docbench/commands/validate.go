package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docbench/internal/app"
	"docbench/internal/domain"
	"docbench/internal/report"
	"docbench/internal/service"
)

type validateOptions struct {
	file         string
	expected     string
	documentType string
	backends     []string
	format       string
	out          string
	details      bool
	minAccuracy  float64
}

func newValidateCommand(root *rootOptions) *cobra.Command {
	opts := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run every backend against a document and score the results",
		Example: `  docbench validate --file invoice.pdf --expected invoice.json
  docbench validate --file stmt.pdf --expected stmt.json --document-type bank_statement --backends claude,gemini --out report.xlsx
  docbench validate --file invoice.pdf --expected invoice.json --min-accuracy 0.9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "document to extract (pdf, jpg, png)")
	f.StringVarP(&opts.expected, "expected", "e", "", "expected JSON file")
	f.StringVarP(&opts.documentType, "document-type", "t", string(domain.DocumentTypeInvoice), "invoice or bank_statement")
	f.StringSliceVarP(&opts.backends, "backends", "b", nil, "comma-separated subset of backends (default: all enabled)")
	f.StringVar(&opts.format, "format", "", "table, json, csv or xlsx (default: from --out extension, else table)")
	f.StringVarP(&opts.out, "out", "o", "", "write the report to this file instead of stdout")
	f.BoolVar(&opts.details, "details", false, "include per-field outcomes")
	f.Float64Var(&opts.minAccuracy, "min-accuracy", 0, "fail when a successful backend scores below this accuracy")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("expected")
	return cmd
}

func runValidate(cmd *cobra.Command, root *rootOptions, opts *validateOptions) error {
	ctx := cmd.Context()

	docType, err := domain.ParseDocumentType(opts.documentType)
	if err != nil {
		return err
	}
	fileBytes, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	expected, err := os.ReadFile(opts.expected)
	if err != nil {
		return fmt.Errorf("reading expected JSON: %w", err)
	}
	format, err := resolveFormat(opts.format, opts.out)
	if err != nil {
		return err
	}

	core, err := app.NewCore(ctx, root.cfg, root.log)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	rep, err := core.Validation.Validate(ctx, service.ValidateInput{
		FileName:     filepath.Base(opts.file),
		FileBytes:    fileBytes,
		ExpectedJSON: expected,
		DocumentType: docType,
		Backends:     opts.backends,
		Details:      opts.details,
	})
	if err != nil {
		return err
	}

	if err := writeReport(cmd, root, rep, format, opts.out); err != nil {
		return err
	}
	return report.Gate(rep, opts.minAccuracy)
}

// resolveFormat picks the explicit format, else the one implied by the output
// file extension, else the table.
func resolveFormat(format, out string) (string, error) {
	if format == "" {
		switch strings.ToLower(strings.TrimPrefix(filepath.Ext(out), ".")) {
		case report.FormatJSON:
			format = report.FormatJSON
		case report.FormatCSV:
			format = report.FormatCSV
		case report.FormatXLSX:
			format = report.FormatXLSX
		default:
			format = report.FormatTable
		}
	}
	format = strings.ToLower(format)
	switch format {
	case report.FormatTable, report.FormatJSON, report.FormatCSV, report.FormatXLSX:
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q: use table, json, csv or xlsx", format)
	}
}

func writeReport(cmd *cobra.Command, root *rootOptions, rep *domain.Report, format, out string) error {
	var w io.Writer = cmd.OutOrStdout()
	toStdout := out == ""
	if !toStdout {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := report.Write(w, rep, format, report.Options{
		Color: root.useColor(toStdout),
		BOM:   !toStdout,
	}); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if !toStdout {
		root.log.Info().Str("path", out).Str("format", format).Msg("report written")
	}
	return nil
}
