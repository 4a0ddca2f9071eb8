package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"docbench/internal/compare"
	"docbench/internal/domain"
	"docbench/internal/validation"
)

// ValidateInput is the DTO for a validation run against the registered backends.
type ValidateInput struct {
	FileName     string
	FileBytes    []byte
	ExpectedJSON []byte
	DocumentType domain.DocumentType
	// Backends narrows the run to the named backends. Empty means all.
	Backends []string
	Details  bool
}

// CompareInput is the DTO for comparing two payloads without any backend.
type CompareInput struct {
	Expected  []byte
	Predicted []byte
	Details   bool
}

// ComparisonResult is the outcome of a standalone comparison.
type ComparisonResult struct {
	Matcher string                `json:"matcher"`
	Metrics domain.Metrics        `json:"metrics"`
	Fields  []domain.FieldOutcome `json:"fields,omitempty"`
}

// ValidationService defines the validation contract.
type ValidationService interface {
	Validate(ctx context.Context, input ValidateInput) (*domain.Report, error)
	Compare(ctx context.Context, input CompareInput) (*ComparisonResult, error)
	Backends() []string
}

type validationService struct {
	registry    *validation.Registry
	runner      *validation.Runner
	maxFileSize int64
}

// NewValidationService creates a new ValidationService implementation.
// maxFileSize is in bytes; 0 disables the check.
func NewValidationService(
	registry *validation.Registry,
	runner *validation.Runner,
	maxFileSize int64,
) ValidationService {
	return &validationService{
		registry:    registry,
		runner:      runner,
		maxFileSize: maxFileSize,
	}
}

func (s *validationService) Validate(ctx context.Context, input ValidateInput) (*domain.Report, error) {
	contentType, err := DetectContentType(input.FileName, input.FileBytes)
	if err != nil {
		return nil, err
	}
	if s.maxFileSize > 0 && int64(len(input.FileBytes)) > s.maxFileSize {
		return nil, domain.ErrFileTooLarge
	}

	// Invalid ground truth rejects the whole run before any backend is called.
	expected, err := validation.ParseExpected(input.ExpectedJSON)
	if err != nil {
		return nil, err
	}

	reg, err := s.registry.Select(input.Backends)
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, domain.ErrNoBackends
	}

	docType := input.DocumentType
	if docType == "" {
		docType = domain.DocumentTypeInvoice
	}
	doc := domain.Document{
		FileName:     input.FileName,
		ContentType:  contentType,
		Bytes:        input.FileBytes,
		DocumentType: docType,
	}
	return s.runner.RunAll(ctx, doc, expected, reg, validation.Options{Details: input.Details}), nil
}

func (s *validationService) Compare(ctx context.Context, input CompareInput) (*ComparisonResult, error) {
	expected, err := validation.ParseExpected(input.Expected)
	if err != nil {
		return nil, err
	}
	predicted, err := validation.DecodePredicted(input.Predicted)
	if err != nil {
		return nil, err
	}

	matcher := s.runner.Matcher()
	cmp, err := compare.Compare(ctx, expected, predicted, matcher)
	if err != nil {
		if errors.Is(err, domain.ErrComparison) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrComparison, err)
	}

	m := cmp.Metrics
	m.Accuracy = domain.Round(m.Accuracy, 3)
	m.Precision = domain.Round(m.Precision, 3)
	m.Recall = domain.Round(m.Recall, 3)
	m.F1Score = domain.Round(m.F1Score, 3)

	out := &ComparisonResult{Matcher: matcher.Name(), Metrics: m}
	if input.Details {
		out.Fields = cmp.Fields
	}
	return out, nil
}

func (s *validationService) Backends() []string {
	return s.registry.Names()
}

// DetectContentType resolves the MIME type from the file extension and
// checks it against the leading bytes of the file.
func DetectContentType(name string, data []byte) (string, error) {
	contentType, err := domain.ContentTypeForFile(name)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: file is empty", domain.ErrUnsupportedFileType)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if detected := http.DetectContentType(head); detected != contentType {
		return "", fmt.Errorf("%w: %s content does not look like %s", domain.ErrUnsupportedFileType, detected, contentType)
	}
	return contentType, nil
}
