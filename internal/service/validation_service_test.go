package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docbench/internal/compare"
	"docbench/internal/domain"
	"docbench/internal/port"
	"docbench/internal/service"
	"docbench/internal/validation"
	"docbench/mocks"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

func setupValidationService(t *testing.T, backends map[string]*mocks.MockExtractor, order ...string) service.ValidationService {
	t.Helper()
	reg := validation.NewRegistry()
	for _, name := range order {
		require.NoError(t, reg.Register(name, backends[name], 0))
	}
	runner := validation.NewRunner(compare.ExactMatcher{}, 1, zerolog.Nop())
	return service.NewValidationService(reg, runner, 1024)
}

func TestValidationService_Validate_Success(t *testing.T) {
	good := new(mocks.MockExtractor)
	bad := new(mocks.MockExtractor)
	svc := setupValidationService(t, map[string]*mocks.MockExtractor{"good": good, "bad": bad}, "good", "bad")

	good.On("Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.ContentType == "application/pdf" && in.DocumentType == domain.DocumentTypeInvoice && in.FileName == "inv.pdf"
	})).Return(port.TextEnvelope("```json\n{\"a\": \"X\", \"b\": 2}\n```"), nil)
	bad.On("Extract", mock.Anything, mock.Anything).Return(port.ErrorEnvelope("upstream exploded"), nil)

	rep, err := svc.Validate(context.Background(), service.ValidateInput{
		FileName:     "inv.pdf",
		FileBytes:    pdfBytes,
		ExpectedJSON: []byte(`{"a": "x", "b": 2.0}`),
		Details:      true,
	})

	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "good", rep.Results[0].Backend)
	require.True(t, rep.Results[0].OK())
	assert.Equal(t, 1.0, rep.Results[0].Metrics.Accuracy)
	assert.Len(t, rep.Results[0].Fields, 2)
	assert.Equal(t, domain.RunStatusError, rep.Results[1].Status)
	assert.Equal(t, domain.ErrorKindExtraction, rep.Results[1].ErrorKind)
	good.AssertExpectations(t)
	bad.AssertExpectations(t)
}

func TestValidationService_Validate_InvalidExpectedCallsNoBackend(t *testing.T) {
	ext := new(mocks.MockExtractor)
	svc := setupValidationService(t, map[string]*mocks.MockExtractor{"one": ext}, "one")

	_, err := svc.Validate(context.Background(), service.ValidateInput{
		FileName:     "inv.pdf",
		FileBytes:    pdfBytes,
		ExpectedJSON: []byte("{\n  \"a\": 1,\n  \"b\": }"),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidExpectedJSON))
	var pe *validation.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Line)
	ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestValidationService_Validate_FileChecks(t *testing.T) {
	ext := new(mocks.MockExtractor)
	svc := setupValidationService(t, map[string]*mocks.MockExtractor{"one": ext}, "one")
	ctx := context.Background()

	_, err := svc.Validate(ctx, service.ValidateInput{FileName: "notes.txt", FileBytes: []byte("hello"), ExpectedJSON: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	_, err = svc.Validate(ctx, service.ValidateInput{FileName: "fake.pdf", FileBytes: []byte("just text"), ExpectedJSON: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	big := append([]byte("%PDF-1.4\n"), make([]byte, 2048)...)
	_, err = svc.Validate(ctx, service.ValidateInput{FileName: "big.pdf", FileBytes: big, ExpectedJSON: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrFileTooLarge)

	ext.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestValidationService_Validate_SelectBackends(t *testing.T) {
	a := new(mocks.MockExtractor)
	b := new(mocks.MockExtractor)
	svc := setupValidationService(t, map[string]*mocks.MockExtractor{"a": a, "b": b}, "a", "b")
	b.On("Extract", mock.Anything, mock.Anything).Return(port.ResultEnvelope(json.RawMessage(`{"k": "v"}`)), nil)

	rep, err := svc.Validate(context.Background(), service.ValidateInput{
		FileName:     "inv.pdf",
		FileBytes:    pdfBytes,
		ExpectedJSON: []byte(`{"k": "v"}`),
		Backends:     []string{"b"},
	})
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "b", rep.Results[0].Backend)
	assert.Nil(t, rep.Results[0].Fields)
	a.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)

	_, err = svc.Validate(context.Background(), service.ValidateInput{
		FileName:     "inv.pdf",
		FileBytes:    pdfBytes,
		ExpectedJSON: []byte(`{}`),
		Backends:     []string{"nope"},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestValidationService_Validate_EmptyRegistry(t *testing.T) {
	svc := setupValidationService(t, nil)
	_, err := svc.Validate(context.Background(), service.ValidateInput{
		FileName:     "inv.pdf",
		FileBytes:    pdfBytes,
		ExpectedJSON: []byte(`{}`),
	})
	assert.ErrorIs(t, err, domain.ErrNoBackends)
}

func TestValidationService_Compare(t *testing.T) {
	svc := setupValidationService(t, nil)

	res, err := svc.Compare(context.Background(), service.CompareInput{
		Expected:  []byte(`{"a": "1", "b": "two", "c": ""}`),
		Predicted: []byte(`{"result": "{\"a\": 1, \"b\": \"three\"}"}`),
		Details:   true,
	})

	require.NoError(t, err)
	assert.Equal(t, "exact", res.Matcher)
	assert.Equal(t, 3, res.Metrics.TotalFields)
	assert.Equal(t, 2, res.Metrics.Matched)
	assert.Equal(t, 1, res.Metrics.Incorrect)
	assert.Equal(t, 0.667, res.Metrics.Accuracy)
	assert.Len(t, res.Fields, 3)
}

func TestValidationService_Compare_Errors(t *testing.T) {
	svc := setupValidationService(t, nil)
	ctx := context.Background()

	_, err := svc.Compare(ctx, service.CompareInput{Expected: []byte(`{`), Predicted: []byte(`{}`)})
	assert.ErrorIs(t, err, domain.ErrInvalidExpectedJSON)

	_, err = svc.Compare(ctx, service.CompareInput{Expected: []byte(`{}`), Predicted: []byte(`not json`)})
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.NotErrorIs(t, err, domain.ErrInvalidExpectedJSON)

	_, err = svc.Compare(ctx, service.CompareInput{Expected: []byte(`{}`), Predicted: []byte(`{"error": "boom", "status": "failed"}`)})
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding server down")
}

func TestValidationService_Compare_MatcherErrorWrappedOnce(t *testing.T) {
	runner := validation.NewRunner(compare.NewSemanticMatcher(failingEmbedder{}, 0), 1, zerolog.Nop())
	svc := service.NewValidationService(validation.NewRegistry(), runner, 1024)

	_, err := svc.Compare(context.Background(), service.CompareInput{
		Expected:  []byte(`{"name": "Acme"}`),
		Predicted: []byte(`{"name": "Acme Corp"}`),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrComparison)
	assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrComparison.Error()))
	assert.Contains(t, err.Error(), "embedding server down")
}

func TestValidationService_Backends(t *testing.T) {
	svc := setupValidationService(t, map[string]*mocks.MockExtractor{
		"z": new(mocks.MockExtractor), "a": new(mocks.MockExtractor),
	}, "z", "a")
	assert.Equal(t, []string{"z", "a"}, svc.Backends())
}

func TestDetectContentType(t *testing.T) {
	ct, err := service.DetectContentType("scan.PNG", []byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	ct, err = service.DetectContentType("photo.jpeg", []byte("\xff\xd8\xff\xe0rest"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)

	_, err = service.DetectContentType("empty.pdf", nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}
