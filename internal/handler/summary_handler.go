package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/dto"
	"github.com/RodenPaul86/docmatic/internal/middleware"
	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/response"
)

type summaryService interface {
	Summarize(ctx context.Context, sessionID, documentID, length string) (*models.SummaryResult, error)
}

// SummaryHandler runs OCR and summarization for a document.
type SummaryHandler struct {
	service summaryService
}

// NewSummaryHandler builds a new handler.
func NewSummaryHandler(service summaryService) *SummaryHandler {
	return &SummaryHandler{service: service}
}

// Summarize godoc
// @Summary Summarize a document
// @Description A failed summarization is still a 200 with succeeded=false and a message.
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body dto.SummaryRequest false "Length preset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents/{id}/summary [post]
func (h *SummaryHandler) Summarize(c *gin.Context) {
	var req dto.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid summary payload"))
		return
	}
	result, err := h.service.Summarize(c.Request.Context(), middleware.SessionID(c), c.Param("id"), req.Length)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
