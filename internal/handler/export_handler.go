package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/middleware"
	"github.com/RodenPaul86/docmatic/internal/models"
	"github.com/RodenPaul86/docmatic/pkg/response"
	"github.com/RodenPaul86/docmatic/pkg/storage"
)

type exportService interface {
	Export(ctx context.Context, sessionID, documentID string) (*models.ExportLink, error)
	Resolve(token string) (*storage.SignedToken, error)
	Open(relPath string) (*os.File, error)
	WriteLibraryCSV(ctx context.Context, w io.Writer) error
}

// ExportHandler renders PDFs and serves signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export godoc
// @Summary Render a document to PDF
// @Description Returns a signed, expiring download link.
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /documents/{id}/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	link, err := h.service.Export(c.Request.Context(), middleware.SessionID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Download godoc
// @Summary Download an exported PDF
// @Tags Exports
// @Produce application/pdf
// @Param token path string true "Signed export token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token, err := h.service.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Open(token.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	modTime := time.Time{}
	if info, statErr := file.Stat(); statErr == nil {
		modTime = info.ModTime()
	}
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", response.ContentDisposition(path.Base(token.Path)))
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, path.Base(token.Path), modTime, file)
}

// LibraryCSV godoc
// @Summary Export the library index as CSV
// @Tags Exports
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /library.csv [get]
func (h *ExportHandler) LibraryCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", response.ContentDisposition("library.csv"))
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := h.service.WriteLibraryCSV(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
	}
}
