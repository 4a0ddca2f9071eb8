package validation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docbench/internal/compare"
	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/extractor"
	"docbench/internal/port"
	"docbench/internal/validation"
)

// extractFunc adapts a function to port.Extractor.
type extractFunc func(ctx context.Context, in port.ExtractInput) (*port.Envelope, error)

func (f extractFunc) Extract(ctx context.Context, in port.ExtractInput) (*port.Envelope, error) {
	return f(ctx, in)
}

func jsonResult(s string) port.Extractor {
	return extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return port.ResultEnvelope(json.RawMessage(s)), nil
	})
}

func mustExpected(t *testing.T, s string) any {
	t.Helper()
	v, err := validation.ParseExpected([]byte(s))
	require.NoError(t, err)
	return v
}

func newRegistry(t *testing.T, backends ...validation.Backend) *validation.Registry {
	t.Helper()
	reg := validation.NewRegistry()
	for _, b := range backends {
		require.NoError(t, reg.Register(b.Name, b.Extractor, b.Timeout))
	}
	return reg
}

var testDoc = domain.Document{
	FileName:     "statement.pdf",
	ContentType:  "application/pdf",
	Bytes:        []byte("%PDF"),
	DocumentType: domain.DocumentTypeBankStatement,
}

const statementJSON = `{"transactions":[{"date":"2024-01-01","debit":100}]}`

func TestRunAll_BackendFailureKeepsOrder(t *testing.T) {
	expected := mustExpected(t, statementJSON)
	failing := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return nil, errors.New("connection reset")
	})
	reg := newRegistry(t,
		validation.Backend{Name: "first", Extractor: jsonResult(statementJSON)},
		validation.Backend{Name: "second", Extractor: failing},
		validation.Backend{Name: "third", Extractor: jsonResult(`{"transactions":[{"date":"2024-01-02","debit":100}]}`)},
	)

	runner := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop())
	report := runner.RunAll(context.Background(), testDoc, expected, reg, validation.Options{})

	require.Len(t, report.Results, 3)
	assert.Equal(t, "statement.pdf", report.Document)
	assert.Equal(t, "exact", report.Matcher)

	first, second, third := report.Results[0], report.Results[1], report.Results[2]
	assert.Equal(t, "first", first.Backend)
	assert.Equal(t, domain.RunStatusOK, first.Status)
	assert.Equal(t, 1.0, first.Metrics.Accuracy)

	assert.Equal(t, "second", second.Backend)
	assert.Equal(t, domain.RunStatusError, second.Status)
	assert.Equal(t, domain.ErrorKindExtraction, second.ErrorKind)
	assert.Equal(t, "connection reset", second.ErrorMessage)
	assert.Nil(t, second.Metrics)

	raw, err := json.Marshal(second)
	require.NoError(t, err)
	var row map[string]any
	require.NoError(t, json.Unmarshal(raw, &row))
	for _, k := range []string{"total_fields", "matched", "missing", "incorrect", "accuracy", "precision", "recall", "f1_score"} {
		assert.Equal(t, domain.ErrorSentinel, row[k], k)
	}

	assert.Equal(t, "third", third.Backend)
	assert.Equal(t, domain.RunStatusOK, third.Status)
	assert.Equal(t, 2, third.Metrics.TotalFields)
	assert.Equal(t, 1, third.Metrics.Incorrect)
	assert.Equal(t, 0.5, third.Metrics.Accuracy)
}

func TestRunAll_FencedStringResult(t *testing.T) {
	expected := mustExpected(t, statementJSON)
	fenced := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return port.TextEnvelope("```json\n" + statementJSON + "\n```"), nil
	})
	reg := newRegistry(t, validation.Backend{Name: "claude", Extractor: fenced})

	report := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, expected, reg, validation.Options{Details: true})

	res := report.Results[0]
	require.True(t, res.OK(), res.ErrorMessage)
	assert.Equal(t, 1.0, res.Metrics.Accuracy)
	require.Len(t, res.Fields, 2)
	assert.Equal(t, "transactions[0].date", res.Fields[0].Path)
	assert.Equal(t, domain.OutcomeMatch, res.Fields[1].Outcome)
}

func TestRunAll_DetailsOff(t *testing.T) {
	reg := newRegistry(t, validation.Backend{Name: "a", Extractor: jsonResult(statementJSON)})
	report := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, mustExpected(t, statementJSON), reg, validation.Options{})
	assert.Nil(t, report.Results[0].Fields)
}

func TestRunAll_Timeout(t *testing.T) {
	stuck := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		// Ignores its context on purpose.
		time.Sleep(500 * time.Millisecond)
		return port.ResultEnvelope(json.RawMessage(`{}`)), nil
	})
	reg := newRegistry(t,
		validation.Backend{Name: "slow", Extractor: stuck, Timeout: 20 * time.Millisecond},
		validation.Backend{Name: "fast", Extractor: jsonResult(statementJSON), Timeout: time.Second},
	)

	start := time.Now()
	report := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, mustExpected(t, statementJSON), reg, validation.Options{})

	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, domain.RunStatusError, report.Results[0].Status)
	assert.Equal(t, domain.ErrorKindTimeout, report.Results[0].ErrorKind)
	assert.True(t, report.Results[1].OK())
}

func TestRunAll_PanicBecomesErrorRow(t *testing.T) {
	panicky := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		panic("nil map write")
	})
	reg := newRegistry(t,
		validation.Backend{Name: "panicky", Extractor: panicky},
		validation.Backend{Name: "ok", Extractor: jsonResult(statementJSON)},
	)

	report := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, mustExpected(t, statementJSON), reg, validation.Options{})

	assert.Equal(t, domain.ErrorKindExtraction, report.Results[0].ErrorKind)
	assert.Contains(t, report.Results[0].ErrorMessage, "nil map write")
	assert.True(t, report.Results[1].OK())
}

func TestRunAll_ErrorKinds(t *testing.T) {
	notConfigured := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return nil, extractor.RequireSetting("claude", "api key", "")
	})
	credsEnvelope := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return port.ErrorEnvelope("MISTRAL_API_KEY not set."), nil
	})
	failedEnvelope := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return port.ErrorEnvelope("Polling timed out"), nil
	})
	malformed := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return &port.Envelope{}, nil
	})
	prose := extractFunc(func(context.Context, port.ExtractInput) (*port.Envelope, error) {
		return port.TextEnvelope("I could not read this document."), nil
	})

	reg := newRegistry(t,
		validation.Backend{Name: "claude", Extractor: notConfigured},
		validation.Backend{Name: "mistral", Extractor: credsEnvelope},
		validation.Backend{Name: "datalab", Extractor: failedEnvelope},
		validation.Backend{Name: "malformed", Extractor: malformed},
		validation.Backend{Name: "gemini", Extractor: prose},
	)

	report := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, mustExpected(t, statementJSON), reg, validation.Options{})

	kinds := make([]domain.ErrorKind, len(report.Results))
	for i, r := range report.Results {
		assert.Equal(t, domain.RunStatusError, r.Status)
		kinds[i] = r.ErrorKind
	}
	assert.Equal(t, []domain.ErrorKind{
		domain.ErrorKindConfiguration,
		domain.ErrorKindConfiguration,
		domain.ErrorKindExtraction,
		domain.ErrorKindExtraction,
		domain.ErrorKindParse,
	}, kinds)
	assert.Contains(t, report.Results[3].ErrorMessage, "malformed envelope")
}

type failingMatcher struct{}

func (failingMatcher) Name() string { return "failing" }

func (failingMatcher) Match(context.Context, compare.Value, compare.Value) (bool, error) {
	return false, fmt.Errorf("%w: embedding server unavailable", domain.ErrComparison)
}

func TestRunAll_ComparisonError(t *testing.T) {
	reg := newRegistry(t, validation.Backend{Name: "a", Extractor: jsonResult(`{"transactions":[{"date":"x","debit":1}]}`)})
	report := validation.NewRunner(failingMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, mustExpected(t, statementJSON), reg, validation.Options{})
	assert.Equal(t, domain.ErrorKindComparison, report.Results[0].ErrorKind)
}

func TestRunAll_ParallelKeepsRegistrationOrder(t *testing.T) {
	var inflight, peak int32
	delayed := func(d time.Duration) port.Extractor {
		return extractFunc(func(ctx context.Context, _ port.ExtractInput) (*port.Envelope, error) {
			n := atomic.AddInt32(&inflight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			defer atomic.AddInt32(&inflight, -1)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return port.ResultEnvelope(json.RawMessage(statementJSON)), nil
		})
	}

	reg := newRegistry(t,
		validation.Backend{Name: "b1", Extractor: delayed(80 * time.Millisecond)},
		validation.Backend{Name: "b2", Extractor: delayed(10 * time.Millisecond)},
		validation.Backend{Name: "b3", Extractor: delayed(40 * time.Millisecond)},
		validation.Backend{Name: "b4", Extractor: delayed(1 * time.Millisecond)},
	)

	report := validation.NewRunner(compare.ExactMatcher{}, 2, zerolog.Nop()).
		RunAll(context.Background(), testDoc, mustExpected(t, statementJSON), reg, validation.Options{})

	names := make([]string, len(report.Results))
	for i, r := range report.Results {
		names[i] = r.Backend
		assert.True(t, r.OK(), r.ErrorMessage)
	}
	assert.Equal(t, []string{"b1", "b2", "b3", "b4"}, names)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunAll_PassesDocument(t *testing.T) {
	var got port.ExtractInput
	capture := extractFunc(func(_ context.Context, in port.ExtractInput) (*port.Envelope, error) {
		got = in
		return port.ResultEnvelope(json.RawMessage(`{}`)), nil
	})
	reg := newRegistry(t, validation.Backend{Name: "a", Extractor: capture})

	validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop()).
		RunAll(context.Background(), testDoc, map[string]any{}, reg, validation.Options{})

	assert.Equal(t, "statement.pdf", got.FileName)
	assert.Equal(t, []byte("%PDF"), got.FileBytes)
	assert.Equal(t, domain.DocumentTypeBankStatement, got.DocumentType)
}

func TestRegistry(t *testing.T) {
	reg := validation.NewRegistry()
	require.NoError(t, reg.Register("a", jsonResult(`{}`), 0))
	require.NoError(t, reg.Register("b", jsonResult(`{}`), time.Second))

	err := reg.Register("a", jsonResult(`{}`), 0)
	assert.ErrorIs(t, err, domain.ErrDuplicateBackend)
	assert.Error(t, reg.Register("", jsonResult(`{}`), 0))
	assert.Error(t, reg.Register("c", nil, 0))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	assert.Equal(t, 2, reg.Len())

	b, ok := reg.Get("b")
	require.True(t, ok)
	assert.Equal(t, time.Second, b.Timeout)

	sub, err := reg.Select([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sub.Names())

	_, err = reg.Select([]string{"zzz"})
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestBuildRegistry(t *testing.T) {
	extractor.RegisterProvider("validation-test", func(cfg *config.BackendConfig, _ extractor.Deps) (port.Extractor, error) {
		return jsonResult(`{}`), nil
	})

	cfg := &config.Config{
		Runner: config.RunnerConfig{TimeoutSecs: 30},
		Backends: config.BackendsConfig{
			Enabled: []string{"two", "one"},
			Items: map[string]config.BackendConfig{
				"one": {Name: "one", Provider: "validation-test", TimeoutSecs: 5},
				"two": {Name: "two", Provider: "validation-test"},
			},
		},
	}
	reg, err := validation.BuildRegistry(cfg, extractor.Deps{})
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "one"}, reg.Names())

	one, _ := reg.Get("one")
	two, _ := reg.Get("two")
	assert.Equal(t, 5*time.Second, one.Timeout)
	assert.Equal(t, 30*time.Second, two.Timeout)

	cfg.Backends.Items["one"] = config.BackendConfig{Name: "one", Provider: "does-not-exist"}
	_, err = validation.BuildRegistry(cfg, extractor.Deps{})
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.ErrorKindNone, validation.Classify(nil))
	assert.Equal(t, domain.ErrorKindTimeout, validation.Classify(fmt.Errorf("poll: %w", context.DeadlineExceeded)))
	assert.Equal(t, domain.ErrorKindTimeout, validation.Classify(domain.ErrTimeout))
	assert.Equal(t, domain.ErrorKindConfiguration, validation.Classify(fmt.Errorf("x: %w", domain.ErrConfiguration)))
	assert.Equal(t, domain.ErrorKindComparison, validation.Classify(domain.ErrComparison))
	assert.Equal(t, domain.ErrorKindExtraction, validation.Classify(errors.New("boom")))
	assert.Equal(t, domain.ErrorKindExtraction, validation.Classify(context.Canceled))
}
