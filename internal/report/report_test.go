package report_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docbench/internal/domain"
	"docbench/internal/report"
)

func sampleReport() *domain.Report {
	return &domain.Report{
		Document:     "invoice.pdf",
		DocumentType: domain.DocumentTypeInvoice,
		Matcher:      "exact",
		StartedAt:    time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
		Results: []domain.RunResult{
			{
				Backend: "mistral",
				Status:  domain.RunStatusOK,
				Metrics: &domain.Metrics{
					TotalFields: 6, Matched: 3, Missing: 2, Incorrect: 1,
					Accuracy: 0.5, Precision: 1, Recall: 0.5, F1Score: 2.0 / 3.0,
				},
				ElapsedSeconds: 1.23456,
				Fields: []domain.FieldOutcome{
					{Path: "sellerInfo.name", Expected: "acme", Predicted: "acme", Outcome: domain.OutcomeMatch},
				},
			},
			{
				Backend:        "azure",
				Status:         domain.RunStatusError,
				ErrorKind:      domain.ErrorKindConfiguration,
				ErrorMessage:   "azure api key is not set",
				ElapsedSeconds: 0.001,
			},
		},
	}
}

func TestRow(t *testing.T) {
	rep := sampleReport()

	ok := report.Row(&rep.Results[0])
	assert.Len(t, ok, len(report.Columns))
	assert.Equal(t, []string{"mistral", "6", "3", "2", "1", "0.500", "1.000", "0.500", "0.667", "1.23", "ok", "", ""}, ok)

	failed := report.Row(&rep.Results[1])
	assert.Equal(t, "azure", failed[0])
	for i := 1; i <= 8; i++ {
		assert.Equal(t, domain.ErrorSentinel, failed[i])
	}
	assert.Equal(t, "error", failed[10])
	assert.Equal(t, "configuration", failed[11])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, sampleReport(), true))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, report.BOM))

	rows, err := csv.NewReader(bytes.NewReader(data[len(report.BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, report.Columns, rows[0])
	assert.Equal(t, "mistral", rows[1][0])
	assert.Equal(t, "error", rows[2][5])
	assert.Equal(t, "azure api key is not set", rows[2][12])
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteTable(&buf, sampleReport(), false))
	out := buf.String()

	assert.Contains(t, out, "invoice.pdf")
	assert.Contains(t, out, "BACKEND")
	assert.Contains(t, out, "mistral")
	assert.Contains(t, out, "0.500")
	assert.Contains(t, out, "best: mistral")
	assert.Contains(t, out, "error azure [configuration]: azure api key is not set")
	assert.Contains(t, out, "sellerInfo.name")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteTable_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteTable(&buf, sampleReport(), true))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, sampleReport(), report.FormatJSON, report.Options{}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	results := decoded["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, 0.667, results[0].(map[string]any)["f1_score"])
	assert.Equal(t, 1.23, results[0].(map[string]any)["elapsed_seconds"])
	assert.Equal(t, "error", results[1].(map[string]any)["accuracy"])
}

func TestWrite_UnknownFormat(t *testing.T) {
	assert.Error(t, report.Write(&bytes.Buffer{}, sampleReport(), "pdf", report.Options{}))
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(report.SheetResults)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "backend", rows[0][0])
	assert.Equal(t, "mistral", rows[1][0])
	assert.Equal(t, "6", rows[1][1])
	assert.Equal(t, "error", rows[2][1])

	fields, err := f.GetRows(report.SheetFields)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "sellerInfo.name", fields[1][1])
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv; charset=utf-8", report.ContentType(report.FormatCSV))
	assert.Contains(t, report.ContentType(report.FormatXLSX), "spreadsheetml")
}
