package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docbench/internal/domain"
	"docbench/internal/report"
)

func okRow(name string, acc float64) domain.RunResult {
	return domain.RunResult{Backend: name, Status: domain.RunStatusOK, Metrics: &domain.Metrics{Accuracy: acc}}
}

func errRow(name string) domain.RunResult {
	return domain.RunResult{Backend: name, Status: domain.RunStatusError, ErrorKind: domain.ErrorKindTimeout}
}

func TestGate(t *testing.T) {
	tests := []struct {
		name    string
		results []domain.RunResult
		min     float64
		wantErr string
	}{
		{"all ok without threshold", []domain.RunResult{okRow("a", 0.1)}, 0, ""},
		{"one failure tolerated", []domain.RunResult{okRow("a", 0.9), errRow("b")}, 0.8, ""},
		{"below threshold", []domain.RunResult{okRow("a", 0.9), okRow("b", 0.5)}, 0.8, "b=0.500"},
		{"all failed", []domain.RunResult{errRow("a"), errRow("b")}, 0, "all 2 backends failed"},
		{"empty", nil, 0, "no rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := report.Gate(&domain.Report{Results: tt.results}, tt.min)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, report.ErrGateFailed)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
