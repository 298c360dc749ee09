package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/dto"
	"github.com/RodenPaul86/docmatic/internal/middleware"
	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/response"
)

type documentService interface {
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	GetPageImage(ctx context.Context, sessionID, id string, position int) ([]byte, error)
	Rename(ctx context.Context, id, name string) (*models.Document, error)
	Delete(ctx context.Context, sessionID, id string) error
	Lock(ctx context.Context, sessionID, id string) (*models.Document, error)
	Unlock(ctx context.Context, sessionID, id string) (*models.Document, error)
	Authenticate(ctx context.Context, sessionID, id, credential string) (*models.Document, error)
	Duplicate(ctx context.Context, sessionID, id string) (*models.Document, error)
	OpenViewer(ctx context.Context, sessionID, id string) (*models.Document, error)
	CloseViewer(sessionID, id string)
}

// DocumentHandler exposes the document library.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler builds a new handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// List godoc
// @Summary List documents, newest first
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param q query string false "Name contains"
// @Param limit query int false "Page size (max 500)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var query dto.ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	docs, err := h.service.List(c.Request.Context(), models.DocumentFilter{Query: query.Query, Limit: query.Limit, Offset: query.Offset})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, docs)
}

// Get godoc
// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Page godoc
// @Summary Get one page image
// @Tags Documents
// @Produce image/jpeg
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param position path int true "Zero-based page position"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/{id}/pages/{position} [get]
func (h *DocumentHandler) Page(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid page position"))
		return
	}
	data, err := h.service.GetPageImage(c.Request.Context(), middleware.SessionID(c), c.Param("id"), position)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// Rename godoc
// @Summary Rename a document
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body dto.RenameDocumentRequest true "New name"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [patch]
func (h *DocumentHandler) Rename(c *gin.Context) {
	var req dto.RenameDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rename payload"))
		return
	}
	doc, err := h.service.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Delete godoc
// @Summary Delete a document and all of its pages
// @Tags Documents
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.SessionID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Lock godoc
// @Summary Lock a document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/lock [post]
func (h *DocumentHandler) Lock(c *gin.Context) {
	doc, err := h.service.Lock(c.Request.Context(), middleware.SessionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Unlock godoc
// @Summary Unlock a document the session has authenticated for
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents/{id}/unlock [post]
func (h *DocumentHandler) Unlock(c *gin.Context) {
	doc, err := h.service.Unlock(c.Request.Context(), middleware.SessionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Authenticate godoc
// @Summary Authenticate the session for a locked document
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body dto.AuthenticateDocumentRequest true "Credential"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /documents/{id}/authenticate [post]
func (h *DocumentHandler) Authenticate(c *gin.Context) {
	var req dto.AuthenticateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "credential is required"))
		return
	}
	doc, err := h.service.Authenticate(c.Request.Context(), middleware.SessionID(c), c.Param("id"), req.Credential)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Duplicate godoc
// @Summary Duplicate a document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 201 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Router /documents/{id}/duplicate [post]
func (h *DocumentHandler) Duplicate(c *gin.Context) {
	doc, err := h.service.Duplicate(c.Request.Context(), middleware.SessionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// OpenViewer godoc
// @Summary Register an open viewer
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/viewer [post]
func (h *DocumentHandler) OpenViewer(c *gin.Context) {
	doc, err := h.service.OpenViewer(c.Request.Context(), middleware.SessionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// CloseViewer godoc
// @Summary Register a closed viewer
// @Tags Documents
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id}/viewer [delete]
func (h *DocumentHandler) CloseViewer(c *gin.Context) {
	h.service.CloseViewer(middleware.SessionID(c), c.Param("id"))
	response.NoContent(c)
}
