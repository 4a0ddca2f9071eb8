package report

import (
	"errors"
	"fmt"
	"strings"

	"docbench/internal/domain"
)

// ErrGateFailed marks a report that should fail a CI run.
var ErrGateFailed = errors.New("validation gate failed")

// Gate fails when every row errored, or when a successful row scored below
// minAccuracy. A non-positive minAccuracy only checks the first condition.
func Gate(rep *domain.Report, minAccuracy float64) error {
	if len(rep.Results) == 0 {
		return fmt.Errorf("%w: report has no rows", ErrGateFailed)
	}

	var ok int
	var below []string
	for i := range rep.Results {
		r := &rep.Results[i]
		if !r.OK() {
			continue
		}
		ok++
		if minAccuracy > 0 && r.Metrics.Accuracy < minAccuracy {
			below = append(below, fmt.Sprintf("%s=%.3f", r.Backend, r.Metrics.Accuracy))
		}
	}

	if ok == 0 {
		return fmt.Errorf("%w: all %d backends failed", ErrGateFailed, len(rep.Results))
	}
	if len(below) > 0 {
		return fmt.Errorf("%w: accuracy below %.3f: %s", ErrGateFailed, minAccuracy, strings.Join(below, ", "))
	}
	return nil
}
