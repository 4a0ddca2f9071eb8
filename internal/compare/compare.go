package compare

import (
	"context"
	"sort"

	"docbench/internal/domain"
)

// Comparison is the result of judging one predicted tree against the
// expected tree.
type Comparison struct {
	Fields  []domain.FieldOutcome
	Metrics domain.Metrics
}

// Compare flattens both trees and classifies every path present on either
// side:
//
//	both sides empty          -> match
//	matcher says equivalent   -> match
//	both sides non-empty      -> incorrect
//	exactly one side empty    -> missing
//
// Precision, recall and F1 are computed over a ground-truth vector that is 1
// for every path ("field expected") and a predicted vector that is 1 only
// for matches. Because the ground truth never contains a 0, recall always
// equals accuracy and precision is 1 whenever anything matched.
func Compare(ctx context.Context, expected, predicted any, m Matcher) (*Comparison, error) {
	exp, err := Flatten(expected)
	if err != nil {
		return nil, err
	}
	pred, err := Flatten(predicted)
	if err != nil {
		return nil, err
	}

	paths := unionPaths(exp, pred)
	fields := make([]domain.FieldOutcome, 0, len(paths))
	yTrue := make([]int, 0, len(paths))
	yPred := make([]int, 0, len(paths))

	var metrics domain.Metrics
	for _, path := range paths {
		e, p := exp[path], pred[path]
		outcome, err := judge(ctx, e, p, m)
		if err != nil {
			return nil, err
		}

		switch outcome {
		case domain.OutcomeMatch:
			metrics.Matched++
		case domain.OutcomeIncorrect:
			metrics.Incorrect++
		default:
			metrics.Missing++
		}

		yTrue = append(yTrue, 1)
		if outcome == domain.OutcomeMatch {
			yPred = append(yPred, 1)
		} else {
			yPred = append(yPred, 0)
		}

		fields = append(fields, domain.FieldOutcome{
			Path:      path,
			Expected:  Normalize(e),
			Predicted: Normalize(p),
			Outcome:   outcome,
		})
	}

	metrics.TotalFields = metrics.Matched + metrics.Incorrect + metrics.Missing
	metrics.Accuracy = safeDiv(metrics.Matched, metrics.TotalFields)

	c := confusionOf(yTrue, yPred)
	metrics.Precision = c.precision()
	metrics.Recall = c.recall()
	metrics.F1Score = c.f1()

	return &Comparison{Fields: fields, Metrics: metrics}, nil
}

func judge(ctx context.Context, expected, predicted Value, m Matcher) (domain.Outcome, error) {
	e, p := Normalize(expected), Normalize(predicted)
	if e == "" && p == "" {
		return domain.OutcomeMatch, nil
	}
	ok, err := m.Match(ctx, expected, predicted)
	if err != nil {
		return "", err
	}
	switch {
	case ok:
		return domain.OutcomeMatch, nil
	case e != "" && p != "":
		return domain.OutcomeIncorrect, nil
	default:
		return domain.OutcomeMissing, nil
	}
}

func unionPaths(a, b map[string]Value) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for p := range a {
		seen[p] = struct{}{}
	}
	for p := range b {
		seen[p] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
