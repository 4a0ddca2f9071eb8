package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"docbench/internal/compare"
	"docbench/internal/domain"
	"docbench/internal/port"
)

// Options adjust a single run.
type Options struct {
	// Details attaches per-field outcomes to every successful row.
	Details bool
}

// Runner exercises every backend of a registry against one document and
// scores the results. It is safe for concurrent use.
type Runner struct {
	matcher     compare.Matcher
	concurrency int
	log         zerolog.Logger
}

// NewRunner creates a Runner. concurrency <= 1 runs backends one at a time.
func NewRunner(matcher compare.Matcher, concurrency int, log zerolog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{matcher: matcher, concurrency: concurrency, log: log}
}

// Matcher returns the matcher used to compare leaves.
func (r *Runner) Matcher() compare.Matcher { return r.matcher }

// RunAll returns one row per registered backend, in registration order. A
// failing backend produces an error row and never affects the others.
func (r *Runner) RunAll(ctx context.Context, doc domain.Document, expected any, reg *Registry, opts Options) *domain.Report {
	backends := reg.Backends()
	report := &domain.Report{
		Document:     doc.FileName,
		DocumentType: doc.DocumentType,
		Matcher:      r.matcher.Name(),
		StartedAt:    time.Now().UTC(),
		Results:      make([]domain.RunResult, len(backends)),
	}

	if r.concurrency == 1 {
		for i, b := range backends {
			report.Results[i] = r.runOne(ctx, doc, expected, b, opts)
		}
		return report
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, b := range backends {
		g.Go(func() error {
			report.Results[i] = r.runOne(ctx, doc, expected, b, opts)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (r *Runner) runOne(ctx context.Context, doc domain.Document, expected any, b Backend, opts Options) domain.RunResult {
	start := time.Now()
	res := domain.RunResult{Backend: b.Name}

	predicted, err := r.extract(ctx, doc, b)
	var cmp *compare.Comparison
	if err == nil {
		cmp, err = compare.Compare(ctx, expected, predicted, r.matcher)
	}
	res.ElapsedSeconds = time.Since(start).Seconds()

	if err != nil {
		res.Status = domain.RunStatusError
		res.ErrorKind = Classify(err)
		res.ErrorMessage = err.Error()
		r.log.Warn().
			Err(err).
			Str("backend", b.Name).
			Str("error_kind", string(res.ErrorKind)).
			Float64("elapsed_seconds", res.ElapsedSeconds).
			Msg("validation: backend failed")
		return res
	}

	m := cmp.Metrics
	res.Status = domain.RunStatusOK
	res.Metrics = &m
	if opts.Details {
		res.Fields = cmp.Fields
	}
	r.log.Info().
		Str("backend", b.Name).
		Str("status", string(res.Status)).
		Float64("elapsed_seconds", res.ElapsedSeconds).
		Float64("accuracy", m.Accuracy).
		Int("total_fields", m.TotalFields).
		Msg("validation: backend scored")
	return res
}

type extractOutcome struct {
	env *port.Envelope
	err error
}

// extract calls the backend in its own goroutine so that a backend ignoring
// its context still times out. A panic becomes an extraction error.
func (r *Runner) extract(ctx context.Context, doc domain.Document, b Backend) (any, error) {
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	input := port.ExtractInput{
		FileName:     doc.FileName,
		FileBytes:    doc.Bytes,
		ContentType:  doc.ContentType,
		DocumentType: doc.DocumentType,
	}

	ch := make(chan extractOutcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- extractOutcome{err: fmt.Errorf("%w: backend panicked: %v", domain.ErrExtraction, p)}
			}
		}()
		env, err := b.Extractor.Extract(ctx, input)
		ch <- extractOutcome{env: env, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", domain.ErrTimeout, b.Timeout)
		}
		return nil, ctx.Err()
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}
		return DecodeEnvelope(out.env)
	}
}
