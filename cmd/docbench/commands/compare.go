package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"docbench/internal/app"
	"docbench/internal/domain"
	"docbench/internal/report"
	"docbench/internal/service"
)

type compareOptions struct {
	expected    string
	predicted   string
	format      string
	out         string
	details     bool
	minAccuracy float64
}

func newCompareCommand(root *rootOptions) *cobra.Command {
	opts := &compareOptions{}
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Score a saved backend output against the expected JSON",
		Long: `compare runs only the comparator. The predicted file may be bare JSON, a
result/error envelope, or JSON wrapped in markdown code fences.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.expected, "expected", "e", "", "expected JSON file")
	f.StringVarP(&opts.predicted, "predicted", "p", "", "predicted output file")
	f.StringVar(&opts.format, "format", "", "table, json, csv or xlsx (default: from --out extension, else table)")
	f.StringVarP(&opts.out, "out", "o", "", "write the report to this file instead of stdout")
	f.BoolVar(&opts.details, "details", false, "include per-field outcomes")
	f.Float64Var(&opts.minAccuracy, "min-accuracy", 0, "fail when accuracy is below this value")
	_ = cmd.MarkFlagRequired("expected")
	_ = cmd.MarkFlagRequired("predicted")
	return cmd
}

func runCompare(cmd *cobra.Command, root *rootOptions, opts *compareOptions) error {
	ctx := cmd.Context()

	expected, err := os.ReadFile(opts.expected)
	if err != nil {
		return fmt.Errorf("reading expected JSON: %w", err)
	}
	predicted, err := os.ReadFile(opts.predicted)
	if err != nil {
		return fmt.Errorf("reading predicted output: %w", err)
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

	start := time.Now()
	res, err := core.Validation.Compare(ctx, service.CompareInput{
		Expected:  expected,
		Predicted: predicted,
		Details:   opts.details,
	})
	if err != nil {
		return err
	}

	metrics := res.Metrics
	rep := &domain.Report{
		Document:  filepath.Base(opts.expected),
		Matcher:   res.Matcher,
		StartedAt: start.UTC(),
		Results: []domain.RunResult{{
			Backend:        filepath.Base(opts.predicted),
			Status:         domain.RunStatusOK,
			Metrics:        &metrics,
			ElapsedSeconds: time.Since(start).Seconds(),
			Fields:         res.Fields,
		}},
	}

	if err := writeReport(cmd, root, rep, format, opts.out); err != nil {
		return err
	}
	return report.Gate(rep, opts.minAccuracy)
}
