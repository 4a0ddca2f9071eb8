// Package report renders validation reports as a terminal table, JSON, CSV
// or an XLSX workbook.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"docbench/internal/domain"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
)

// Columns is the header shared by the tabular formats.
var Columns = []string{
	"backend",
	"total_fields",
	"matched",
	"missing",
	"incorrect",
	"accuracy",
	"precision",
	"recall",
	"f1_score",
	"elapsed_seconds",
	"status",
	"error_kind",
	"error_message",
}

// FieldColumns is the header of the per-field detail rows.
var FieldColumns = []string{"backend", "path", "expected", "predicted", "outcome"}

// Options tune rendering.
type Options struct {
	// Color enables ANSI colors in the table format.
	Color bool
	// BOM prefixes CSV output with a UTF-8 byte order mark for Excel.
	BOM bool
}

// Write renders rep in the given format.
func Write(w io.Writer, rep *domain.Report, format string, opts Options) error {
	switch format {
	case "", FormatTable:
		return WriteTable(w, rep, opts.Color)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case FormatCSV:
		return WriteCSV(w, rep, opts.BOM)
	case FormatXLSX:
		return WriteXLSX(w, rep)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Row converts a run result to its string cells. Failed rows carry the
// error sentinel in every metric column.
func Row(r *domain.RunResult) []string {
	row := make([]string, len(Columns))
	row[0] = r.Backend
	if r.OK() {
		m := r.Metrics
		row[1] = strconv.Itoa(m.TotalFields)
		row[2] = strconv.Itoa(m.Matched)
		row[3] = strconv.Itoa(m.Missing)
		row[4] = strconv.Itoa(m.Incorrect)
		row[5] = formatRatio(m.Accuracy)
		row[6] = formatRatio(m.Precision)
		row[7] = formatRatio(m.Recall)
		row[8] = formatRatio(m.F1Score)
	} else {
		for i := 1; i <= 8; i++ {
			row[i] = domain.ErrorSentinel
		}
	}
	row[9] = strconv.FormatFloat(domain.Round(r.ElapsedSeconds, 2), 'f', 2, 64)
	row[10] = string(r.Status)
	row[11] = string(r.ErrorKind)
	row[12] = r.ErrorMessage
	return row
}

func formatRatio(v float64) string {
	return strconv.FormatFloat(domain.Round(v, 3), 'f', 3, 64)
}
