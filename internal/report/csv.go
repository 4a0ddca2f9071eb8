package report

import (
	"encoding/csv"
	"io"

	"docbench/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel needs to detect the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter wraps csv.Writer for report rows.
type CSVWriter struct {
	csv *csv.Writer
}

// NewCSVWriter creates a CSVWriter that writes to w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{csv: csv.NewWriter(w)}
}

// WriteHeader writes the column header row.
func (w *CSVWriter) WriteHeader() error {
	return w.csv.Write(Columns)
}

// WriteResults writes one row per run result.
func (w *CSVWriter) WriteResults(results []domain.RunResult) error {
	for i := range results {
		if err := w.csv.Write(Row(&results[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *CSVWriter) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *CSVWriter) Error() error {
	return w.csv.Error()
}

// WriteCSV writes the summary rows of rep as CSV.
func WriteCSV(w io.Writer, rep *domain.Report, bom bool) error {
	if bom {
		if _, err := w.Write(BOM); err != nil {
			return err
		}
	}
	cw := NewCSVWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	if err := cw.WriteResults(rep.Results); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
