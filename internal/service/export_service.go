package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/export"
	"github.com/RodenPaul86/docmatic/pkg/storage"
)

const exportDir = "exports"

type documentContent interface {
	Content(ctx context.Context, sessionID, id string) (*models.Document, []models.Page, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
}

type artifactStorage interface {
	Replace(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(prefix string, ttl time.Duration) ([]string, error)
}

type pdfRenderer interface {
	Render(pages []export.PageImage, meta export.RenderMeta) (*export.RenderResult, error)
}

type csvWriter interface {
	Write(w io.Writer, data export.Dataset) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix   string
	ArtifactTTL time.Duration
}

// ExportService renders documents to transient PDF artifacts and hands out signed links to them.
type ExportService struct {
	documents documentContent
	storage   artifactStorage
	pdf       pdfRenderer
	csv       csvWriter
	signer    *storage.SignedURLSigner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(documents documentContent, store artifactStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger, pdf pdfRenderer, csv csvWriter) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ArtifactTTL <= 0 {
		cfg.ArtifactTTL = time.Hour
	}
	if pdf == nil {
		pdf = export.NewPDFRenderer("DocMatic")
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &ExportService{
		documents: documents,
		storage:   store,
		pdf:       pdf,
		csv:       csv,
		signer:    signer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Export renders the document, replaces its scratch artifact and returns a signed link.
func (s *ExportService) Export(ctx context.Context, sessionID, documentID string) (*models.ExportLink, error) {
	doc, pages, err := s.documents.Content(ctx, sessionID, documentID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images := make([]export.PageImage, len(pages))
	for i, p := range pages {
		images[i] = export.PageImage{Position: p.Position, Data: p.Image}
	}
	result, err := s.pdf.Render(images, export.RenderMeta{Title: doc.Name, CreatedAt: doc.CreatedAt})
	if err != nil {
		s.metrics.ExportRendered(false)
		if errors.Is(err, export.ErrNoRenderablePages) {
			return nil, appErrors.ErrExportFailure
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	if len(result.Skipped) > 0 {
		s.logger.Warn("pages skipped during export", zap.String("document_id", doc.ID), zap.Ints("positions", result.Skipped))
	}

	relPath, err := s.storage.Replace(artifactName(doc.ID), result.Data)
	if err != nil {
		s.metrics.ExportRendered(false)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pdf")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	s.metrics.ExportRendered(true)

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &models.ExportLink{
		DocumentID: doc.ID,
		URL:        fmt.Sprintf("%s/exports/%s", prefix, token),
		Pages:      result.Pages,
		ExpiresAt:  expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Resolve validates a download token.
func (s *ExportService) Resolve(token string) (*storage.SignedToken, error) {
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export link is invalid")
	}
	return parsed, nil
}

// Open returns a handle to a stored artifact.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return file, nil
}

// Cleanup removes artifacts older than ttl (the configured ArtifactTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ArtifactTTL
	}
	return s.storage.CleanupOlderThan(exportDir, ttl)
}

// WriteLibraryCSV streams the library index (no page content) as CSV.
func (s *ExportService) WriteLibraryCSV(ctx context.Context, w io.Writer) error {
	docs, err := s.documents.List(ctx, models.DocumentFilter{Limit: 500})
	if err != nil {
		return err
	}
	dataset := export.Dataset{Headers: []string{"id", "name", "created_at", "pages", "locked"}}
	for _, d := range docs {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":         d.ID,
			"name":       d.Name,
			"created_at": d.CreatedAt.UTC().Format(time.RFC3339),
			"pages":      strconv.Itoa(d.PageCount),
			"locked":     strconv.FormatBool(d.IsLocked),
		})
	}
	return s.csv.Write(w, dataset)
}

func artifactName(documentID string) string {
	return exportDir + "/" + documentID + ".pdf"
}
