package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrorSentinel replaces every metric of a failed run when a report is serialized.
const ErrorSentinel = "error"

// Document is the file handed to every extraction backend in a validation run.
type Document struct {
	FileName     string
	ContentType  string
	Bytes        []byte
	DocumentType DocumentType
}

// Metrics are the classification metrics for one expected/predicted pair.
type Metrics struct {
	TotalFields int     `json:"total_fields"`
	Matched     int     `json:"matched"`
	Missing     int     `json:"missing"`
	Incorrect   int     `json:"incorrect"`
	Accuracy    float64 `json:"accuracy"`
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	F1Score     float64 `json:"f1_score"`
}

// FieldOutcome records how a single leaf path was judged.
type FieldOutcome struct {
	Path      string  `json:"path"`
	Expected  string  `json:"expected"`
	Predicted string  `json:"predicted"`
	Outcome   Outcome `json:"outcome"`
}

// RunResult is one backend's row in a validation report.
// Metrics is nil when Status is RunStatusError.
type RunResult struct {
	Backend        string
	Status         RunStatus
	ErrorKind      ErrorKind
	ErrorMessage   string
	Metrics        *Metrics
	ElapsedSeconds float64
	Fields         []FieldOutcome
}

// OK reports whether the backend produced comparable output.
func (r *RunResult) OK() bool {
	return r.Status == RunStatusOK && r.Metrics != nil
}

type runResultJSON struct {
	Backend        string         `json:"backend"`
	TotalFields    any            `json:"total_fields"`
	Matched        any            `json:"matched"`
	Missing        any            `json:"missing"`
	Incorrect      any            `json:"incorrect"`
	Accuracy       any            `json:"accuracy"`
	Precision      any            `json:"precision"`
	Recall         any            `json:"recall"`
	F1Score        any            `json:"f1_score"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Status         RunStatus      `json:"status"`
	ErrorKind      ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Fields         []FieldOutcome `json:"fields,omitempty"`
}

// MarshalJSON flattens the metrics into the row. Failed rows carry the
// ErrorSentinel string in every metric column.
func (r RunResult) MarshalJSON() ([]byte, error) {
	out := runResultJSON{
		Backend:        r.Backend,
		ElapsedSeconds: Round(r.ElapsedSeconds, 2),
		Status:         r.Status,
		ErrorKind:      r.ErrorKind,
		ErrorMessage:   r.ErrorMessage,
		Fields:         r.Fields,
	}
	if r.OK() {
		m := r.Metrics
		out.TotalFields = m.TotalFields
		out.Matched = m.Matched
		out.Missing = m.Missing
		out.Incorrect = m.Incorrect
		out.Accuracy = Round(m.Accuracy, 3)
		out.Precision = Round(m.Precision, 3)
		out.Recall = Round(m.Recall, 3)
		out.F1Score = Round(m.F1Score, 3)
	} else {
		out.TotalFields = ErrorSentinel
		out.Matched = ErrorSentinel
		out.Missing = ErrorSentinel
		out.Incorrect = ErrorSentinel
		out.Accuracy = ErrorSentinel
		out.Precision = ErrorSentinel
		out.Recall = ErrorSentinel
		out.F1Score = ErrorSentinel
	}
	return json.Marshal(out)
}

// Report is the ordered outcome of one validation run, one row per
// registered backend in registration order.
type Report struct {
	Document     string       `json:"document"`
	DocumentType DocumentType `json:"document_type"`
	Matcher      string       `json:"matcher"`
	StartedAt    time.Time    `json:"started_at"`
	Results      []RunResult  `json:"results"`
}

// Best returns the successful row with the highest accuracy, or nil.
func (r *Report) Best() *RunResult {
	var best *RunResult
	for i := range r.Results {
		res := &r.Results[i]
		if !res.OK() {
			continue
		}
		if best == nil || res.Metrics.Accuracy > best.Metrics.Accuracy {
			best = res
		}
	}
	return best
}

// FineTuneRecord is a document flagged as needing fine-tuning, together with
// the human-verified expected output.
type FineTuneRecord struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	FileName     string          `db:"file_name" json:"file_name"`
	FileURL      string          `db:"file_url" json:"file_url"`
	Backend      string          `db:"backend" json:"backend"`
	DocumentType DocumentType    `db:"document_type" json:"document_type"`
	ExpectedJSON json.RawMessage `db:"expected_json" json:"expected_json"`
	Status       FineTuneStatus  `db:"status" json:"status"`
	ModelID      *string         `db:"model_id" json:"model_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
