package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"docbench/internal/domain"
)

// Sheet names in the XLSX workbook.
const (
	SheetResults = "Results"
	SheetFields  = "Fields"
)

// WriteXLSX writes rep as a workbook. Metrics of successful rows are numeric
// cells. A Fields sheet is added when any row carries field details.
func WriteXLSX(w io.Writer, rep *domain.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetResults); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeSheetRow(f, SheetResults, 1, stringsToCells(Columns)); err != nil {
		return err
	}
	for i := range rep.Results {
		if err := writeSheetRow(f, SheetResults, i+2, resultCells(&rep.Results[i])); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetResults, "A1", lastCol+"1", header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	if hasFields(rep) {
		if _, err := f.NewSheet(SheetFields); err != nil {
			return fmt.Errorf("creating fields sheet: %w", err)
		}
		if err := writeSheetRow(f, SheetFields, 1, stringsToCells(FieldColumns)); err != nil {
			return err
		}
		row := 2
		for i := range rep.Results {
			r := &rep.Results[i]
			for _, fo := range r.Fields {
				cells := []interface{}{r.Backend, fo.Path, fo.Expected, fo.Predicted, string(fo.Outcome)}
				if err := writeSheetRow(f, SheetFields, row, cells); err != nil {
					return err
				}
				row++
			}
		}
		lastCol, _ := excelize.ColumnNumberToName(len(FieldColumns))
		if err := f.SetCellStyle(SheetFields, "A1", lastCol+"1", header); err != nil {
			return fmt.Errorf("styling header: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func resultCells(r *domain.RunResult) []interface{} {
	if !r.OK() {
		return stringsToCells(Row(r))
	}
	m := r.Metrics
	return []interface{}{
		r.Backend,
		m.TotalFields,
		m.Matched,
		m.Missing,
		m.Incorrect,
		domain.Round(m.Accuracy, 3),
		domain.Round(m.Precision, 3),
		domain.Round(m.Recall, 3),
		domain.Round(m.F1Score, 3),
		domain.Round(r.ElapsedSeconds, 2),
		string(r.Status),
		string(r.ErrorKind),
		r.ErrorMessage,
	}
}

func stringsToCells(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func hasFields(rep *domain.Report) bool {
	for i := range rep.Results {
		if len(rep.Results[i].Fields) > 0 {
			return true
		}
	}
	return false
}
