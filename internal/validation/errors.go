// Package validation runs a document through every registered extraction
// backend and scores each backend's output against an expected tree.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docbench/internal/domain"
)

// Payload sources for ParseError.
const (
	SourceExpected  = "expected"
	SourcePredicted = "predicted"
)

// ParseError reports a payload that is not valid JSON, with the position of
// the failure.
type ParseError struct {
	Source string
	Line   int
	Column int
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s JSON is invalid at line %d, column %d: %v", e.Source, e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() []error {
	errs := []error{domain.ErrParse, e.Err}
	if e.Source == SourceExpected {
		errs = append(errs, domain.ErrInvalidExpectedJSON)
	}
	return errs
}

// EnvelopeError is a failure reported by the backend inside its envelope.
type EnvelopeError struct {
	Message string
}

func (e *EnvelopeError) Error() string {
	return e.Message
}

// Unwrap classifies the message. Backends report missing credentials as
// "... not set" or "... credentials ...".
func (e *EnvelopeError) Unwrap() error {
	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, "not set") || strings.Contains(msg, "credentials") || strings.Contains(msg, "not configured") {
		return domain.ErrConfiguration
	}
	return domain.ErrExtraction
}

// Classify maps an error to the kind recorded on a report row. Anything
// unrecognized is an extraction failure.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindNone
	}

	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorKindTimeout
	case errors.Is(err, domain.ErrConfiguration):
		return domain.ErrorKindConfiguration
	case errors.Is(err, domain.ErrParse):
		return domain.ErrorKindParse
	case errors.Is(err, domain.ErrComparison):
		return domain.ErrorKindComparison
	case errors.As(err, &timeout) && timeout.Timeout():
		return domain.ErrorKindTimeout
	default:
		return domain.ErrorKindExtraction
	}
}
