package port

import (
	"context"
	"encoding/json"

	"docbench/internal/domain"
)

// ExtractInput carries the document handed to an extraction backend.
type ExtractInput struct {
	FileName     string
	FileBytes    []byte
	ContentType  string
	DocumentType domain.DocumentType
}

// Envelope is the backend contract's response. A successful call sets
// Result to either a JSON value or a JSON string that may be wrapped in
// markdown fences. A failed call sets Error and Status "failed".
type Envelope struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status string          `json:"status,omitempty"`
}

// StatusFailed is the Envelope status of a failed extraction.
const StatusFailed = "failed"

// ResultEnvelope wraps a raw JSON result.
func ResultEnvelope(result json.RawMessage) *Envelope {
	return &Envelope{Result: result}
}

// TextEnvelope wraps model text (possibly fenced JSON) as a JSON string result.
func TextEnvelope(text string) *Envelope {
	raw, _ := json.Marshal(text)
	return &Envelope{Result: raw}
}

// ErrorEnvelope builds a failed envelope.
func ErrorEnvelope(msg string) *Envelope {
	return &Envelope{Error: msg, Status: StatusFailed}
}

// Extractor abstracts a single extraction backend.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) (*Envelope, error)
}

// RestructureInput is free text (OCR markdown, analyzer fields) to be
// reshaped into the extraction schema for a document type.
type RestructureInput struct {
	Text         string
	DocumentType domain.DocumentType
}

// Restructurer turns unstructured extraction text into schema JSON. OCR-style
// backends use it as their second stage.
type Restructurer interface {
	Restructure(ctx context.Context, input RestructureInput) (string, error)
}
