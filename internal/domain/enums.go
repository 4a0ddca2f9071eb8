package domain

import "strings"

// FileType represents the document formats accepted for extraction.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeJPG FileType = "jpg"
	FileTypePNG FileType = "png"
)

// AllowedFileTypes maps FileType to its MIME content type.
var AllowedFileTypes = map[FileType]string{
	FileTypePDF: "application/pdf",
	FileTypeJPG: "image/jpeg",
	FileTypePNG: "image/png",
}

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
}

// ContentTypeForFile returns the MIME type for a file name based on its
// extension, or ErrUnsupportedFileType.
func ContentTypeForFile(name string) (string, error) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return "", ErrUnsupportedFileType
	}
	ft, ok := AllowedExtensions[strings.ToLower(name[idx+1:])]
	if !ok {
		return "", ErrUnsupportedFileType
	}
	return AllowedFileTypes[ft], nil
}

// DocumentType selects the extraction schema.
type DocumentType string

const (
	DocumentTypeInvoice       DocumentType = "invoice"
	DocumentTypeBankStatement DocumentType = "bank_statement"
)

// ParseDocumentType accepts the canonical values as well as the display
// labels "Invoice" and "Bank Statement".
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "invoice":
		return DocumentTypeInvoice, nil
	case "bank_statement", "bank statement", "bankstatement", "statement":
		return DocumentTypeBankStatement, nil
	default:
		return "", ErrInvalidDocumentType
	}
}

// Outcome is the per-leaf result of comparing expected and predicted values.
type Outcome string

const (
	OutcomeMatch     Outcome = "match"
	OutcomeMissing   Outcome = "missing"
	OutcomeIncorrect Outcome = "incorrect"
)

// RunStatus is the status of a single backend run.
type RunStatus string

const (
	RunStatusOK    RunStatus = "ok"
	RunStatusError RunStatus = "error"
)

// ErrorKind classifies why a backend run failed.
type ErrorKind string

const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindExtraction    ErrorKind = "extraction"
	ErrorKindParse         ErrorKind = "parse"
	ErrorKindComparison    ErrorKind = "comparison"
	ErrorKindTimeout       ErrorKind = "timeout"
)

// FineTuneStatus tracks a flagged document through the training workflow.
type FineTuneStatus string

const (
	FineTuneStatusNeeded   FineTuneStatus = "needs_finetune"
	FineTuneStatusTraining FineTuneStatus = "training"
	FineTuneStatusTrained  FineTuneStatus = "trained"
)
