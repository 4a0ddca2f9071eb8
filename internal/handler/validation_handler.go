package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docbench/internal/config"
	"docbench/internal/domain"
	"docbench/internal/report"
	"docbench/internal/service"
)

// ValidationHandler handles validation runs and standalone comparisons.
type ValidationHandler struct {
	validationService service.ValidationService
}

// NewValidationHandler creates a new ValidationHandler.
func NewValidationHandler(validationService service.ValidationService) *ValidationHandler {
	return &ValidationHandler{validationService: validationService}
}

// CompareRequest is the body of POST /api/v1/comparisons. Either side may be
// a JSON value or a string holding JSON, optionally wrapped in markdown fences.
type CompareRequest struct {
	Expected  json.RawMessage `json:"expected" binding:"required"`
	Predicted json.RawMessage `json:"predicted" binding:"required"`
	Details   bool            `json:"details"`
}

// ListBackends handles GET /api/v1/backends
func (h *ValidationHandler) ListBackends(c *gin.Context) {
	RespondOK(c, gin.H{"backends": h.validationService.Backends()})
}

// Validate handles POST /api/v1/validations
// @Summary Run every registered backend against a document
// @Accept multipart/form-data
// @Produce json,text/csv
// @Param file formData file true "Document (PDF, JPG, or PNG)"
// @Param expected_json formData string true "Ground-truth JSON (text field or file)"
// @Param document_type formData string false "invoice or bank_statement"
// @Param backends formData string false "Comma-separated subset of backends"
// @Param format query string false "json, csv, xlsx or table"
// @Param details query bool false "Attach per-field outcomes"
// @Router /validations [post]
func (h *ValidationHandler) Validate(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", report.FormatJSON))
	switch format {
	case report.FormatJSON, report.FormatCSV, report.FormatXLSX, report.FormatTable:
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be one of json, csv, xlsx, table")
		return
	}
	details, _ := strconv.ParseBool(c.DefaultQuery("details", "false"))

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
		return
	}

	expected, ok := readExpected(c)
	if !ok {
		return
	}

	docType, err := domain.ParseDocumentType(c.PostForm("document_type"))
	if err != nil {
		HandleError(c, err)
		return
	}

	rep, err := h.validationService.Validate(c.Request.Context(), service.ValidateInput{
		FileName:     header.Filename,
		FileBytes:    fileBytes,
		ExpectedJSON: expected,
		DocumentType: docType,
		Backends:     config.SplitList(c.PostForm("backends")),
		Details:      details,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	if format == report.FormatJSON {
		RespondOK(c, rep)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, rep, format, report.Options{BOM: true}); err != nil {
		HandleError(c, fmt.Errorf("rendering %s report: %w", format, err))
		return
	}
	if format != report.FormatTable {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(header.Filename, format)))
	}
	c.Data(http.StatusOK, report.ContentType(format), buf.Bytes())
}

// Compare handles POST /api/v1/comparisons
// @Summary Compare an expected and a predicted payload with the configured matcher
// @Accept json
// @Produce json
// @Param body body CompareRequest true "Payloads"
// @Router /comparisons [post]
func (h *ValidationHandler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "expected and predicted are required")
		return
	}

	res, err := h.validationService.Compare(c.Request.Context(), service.CompareInput{
		Expected:  unwrapText(req.Expected),
		Predicted: unwrapText(req.Predicted),
		Details:   req.Details,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// readExpected takes expected_json from a text field or, failing that, an
// uploaded file part of the same name.
func readExpected(c *gin.Context) ([]byte, bool) {
	if v := c.PostForm("expected_json"); strings.TrimSpace(v) != "" {
		return []byte(v), true
	}
	fh, err := c.FormFile("expected_json")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_EXPECTED_JSON", "expected_json field is required")
		return nil, false
	}
	data, err := readPart(fh)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_EXPECTED_JSON", "could not read expected_json")
		return nil, false
	}
	return data, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// unwrapText turns a JSON string into its contents so that payloads pasted as
// text are parsed rather than compared as a single string leaf.
func unwrapText(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return trimmed
	}
	return []byte(s)
}

func downloadName(fileName, format string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		if r == ' ' || r == '"' || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, base)
	return fmt.Sprintf("validation_%s_%s.%s", base, time.Now().UTC().Format("20060102"), format)
}
