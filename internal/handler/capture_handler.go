package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/response"
)

type captureService interface {
	SubmitScan(ctx context.Context, name string, blobs [][]byte) (*models.CaptureJob, error)
	SubmitImport(ctx context.Context, name, filename string, data []byte) (*models.CaptureJob, error)
	Get(id string) (*models.CaptureJob, error)
	Cancel(id string) (*models.CaptureJob, error)
}

// CaptureHandler accepts scans and PDF imports and reports their progress.
type CaptureHandler struct {
	service   captureService
	maxUpload int64
	basePath  string
}

// NewCaptureHandler builds a new handler. basePath prefixes the Location of accepted jobs.
func NewCaptureHandler(service captureService, maxUpload int64, basePath string) *CaptureHandler {
	if maxUpload <= 0 {
		maxUpload = 64 << 20
	}
	return &CaptureHandler{service: service, maxUpload: maxUpload, basePath: strings.TrimRight(basePath, "/")}
}

// Scan godoc
// @Summary Submit camera captures
// @Description Pages are stored in upload order. Returns 202 with a capture job to poll.
// @Tags Captures
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param pages formData file true "Page images, in order"
// @Param name formData string false "Document name"
// @Success 202 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /captures/scan [post]
func (h *CaptureHandler) Scan(c *gin.Context) {
	form, ok := h.multipart(c)
	if !ok {
		return
	}
	files := form.File["pages"]
	if len(files) == 0 {
		response.Error(c, appErrors.ErrCaptureFailure)
		return
	}
	blobs := make([][]byte, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read page upload"))
			return
		}
		blobs = append(blobs, data)
	}

	job, err := h.service.SubmitScan(c.Request.Context(), formValue(form, "name"), blobs)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.accepted(c, job)
}

// Import godoc
// @Summary Import a PDF
// @Tags Captures
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "PDF document"
// @Param name formData string false "Document name (defaults to the file name)"
// @Success 202 {object} response.Envelope
// @Failure 402 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /captures/import [post]
func (h *CaptureHandler) Import(c *gin.Context) {
	form, ok := h.multipart(c)
	if !ok {
		return
	}
	files := form.File["file"]
	if len(files) != 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exactly one PDF file is required"))
		return
	}
	data, err := readPart(files[0])
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload"))
		return
	}

	job, err := h.service.SubmitImport(c.Request.Context(), formValue(form, "name"), files[0].Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.accepted(c, job)
}

// Get godoc
// @Summary Get capture status
// @Tags Captures
// @Produce json
// @Security BearerAuth
// @Param id path string true "Capture ID"
// @Success 200 {object} response.Envelope
// @Router /captures/{id} [get]
func (h *CaptureHandler) Get(c *gin.Context) {
	job, err := h.service.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, job)
}

// Cancel godoc
// @Summary Cancel a pending capture
// @Tags Captures
// @Produce json
// @Security BearerAuth
// @Param id path string true "Capture ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /captures/{id} [delete]
func (h *CaptureHandler) Cancel(c *gin.Context) {
	job, err := h.service.Cancel(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, job)
}

func (h *CaptureHandler) multipart(c *gin.Context) (*multipart.Form, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, status, "invalid multipart upload"))
		return nil, false
	}
	return form, true
}

func (h *CaptureHandler) accepted(c *gin.Context, job *models.CaptureJob) {
	location := fmt.Sprintf("%s/captures/%s", h.basePath, job.ID)
	if job.Status.Terminal() {
		response.OK(c, job)
		return
	}
	response.Accepted(c, location, job)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
