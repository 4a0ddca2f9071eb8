package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docbench/internal/domain"
	"docbench/internal/service"
)

// FineTuneHandler handles flagging documents and starting training.
type FineTuneHandler struct {
	fineTuneService service.FineTuneService
}

// NewFineTuneHandler creates a new FineTuneHandler.
func NewFineTuneHandler(fineTuneService service.FineTuneService) *FineTuneHandler {
	return &FineTuneHandler{fineTuneService: fineTuneService}
}

// Flag handles POST /api/v1/finetune/flags
// @Summary Flag a document whose extraction needs fine-tuning
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document (PDF, JPG, or PNG)"
// @Param expected_json formData string true "Corrected output"
// @Param document_type formData string false "invoice or bank_statement"
// @Param backend formData string false "Backend whose output was corrected"
// @Router /finetune/flags [post]
func (h *FineTuneHandler) Flag(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	expected, ok := readExpected(c)
	if !ok {
		return
	}

	docType, err := domain.ParseDocumentType(c.PostForm("document_type"))
	if err != nil {
		HandleError(c, err)
		return
	}

	rec, err := h.fineTuneService.Flag(c.Request.Context(), service.FlagInput{
		FileName:     header.Filename,
		File:         file,
		Size:         header.Size,
		ExpectedJSON: expected,
		DocumentType: docType,
		Backend:      c.PostForm("backend"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, rec)
}

// ListFlagged handles GET /api/v1/finetune/flags
func (h *FineTuneHandler) ListFlagged(c *gin.Context) {
	offset, limit := parsePagination(c)

	records, total, err := h.fineTuneService.ListFlagged(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondPaginated(c, records, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Download handles GET /api/v1/finetune/flags/:id/download
func (h *FineTuneHandler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid record ID")
		return
	}

	url, err := h.fineTuneService.GetDownloadURL(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"download_url": url})
}

// Train handles POST /api/v1/finetune/train
func (h *FineTuneHandler) Train(c *gin.Context) {
	res, err := h.fineTuneService.TriggerTraining(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondAccepted(c, res)
}
