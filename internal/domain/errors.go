package domain

import "errors"

// Per-backend failure taxonomy. Each is caught at the granularity of a single
// backend and turned into an error row of the report.
var (
	ErrConfiguration = errors.New("backend is not configured")
	ErrExtraction    = errors.New("extraction failed")
	ErrParse         = errors.New("payload is not valid JSON")
	ErrComparison    = errors.New("comparison failed")
	ErrTimeout       = errors.New("backend timed out")
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidExpectedJSON = errors.New("expected JSON is invalid")
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrUnknownBackend      = errors.New("unknown backend")
	ErrDuplicateBackend    = errors.New("backend already registered")
	ErrNoBackends          = errors.New("no backends registered")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrNoTrainingData      = errors.New("no flagged documents with a parsable expected JSON")
	ErrTrainingFailed      = errors.New("fine-tune training could not be started")
)
