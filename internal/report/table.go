package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"docbench/internal/domain"
)

var tableColumns = []string{"BACKEND", "STATUS", "FIELDS", "MATCHED", "MISSING", "INCORRECT", "ACCURACY", "PRECISION", "RECALL", "F1", "ELAPSED"}

// WriteTable renders a fixed-width table, one line per backend, followed by
// field details when the report carries them.
func WriteTable(w io.Writer, rep *domain.Report, useColor bool) error {
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	bold := color.New(color.Bold)
	for _, c := range []*color.Color{ok, bad, bold} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	if _, err := fmt.Fprintf(w, "%s  %s (%s, matcher=%s)\n\n",
		bold.Sprint("docbench"), rep.Document, rep.DocumentType, rep.Matcher); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(tableColumns, "\t"))

	var failures []domain.RunResult
	for i := range rep.Results {
		r := &rep.Results[i]
		cells := Row(r)
		status := ok.Sprint(string(r.Status))
		if !r.OK() {
			status = bad.Sprint(string(r.Status))
			failures = append(failures, *r)
		}
		fmt.Fprintln(tw, strings.Join([]string{
			cells[0], status, cells[1], cells[2], cells[3], cells[4],
			cells[5], cells[6], cells[7], cells[8], cells[9] + "s",
		}, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if best := rep.Best(); best != nil {
		fmt.Fprintf(w, "\nbest: %s (accuracy %.3f)\n", bold.Sprint(best.Backend), best.Metrics.Accuracy)
	}
	for _, f := range failures {
		fmt.Fprintf(w, "%s %s [%s]: %s\n", bad.Sprint("error"), f.Backend, f.ErrorKind, f.ErrorMessage)
	}

	return writeFieldTable(w, rep)
}

func writeFieldTable(w io.Writer, rep *domain.Report) error {
	for i := range rep.Results {
		r := &rep.Results[i]
		if len(r.Fields) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", r.Backend)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tOUTCOME\tEXPECTED\tPREDICTED")
		for _, f := range r.Fields {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Path, f.Outcome, f.Expected, f.Predicted)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
