package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/imaging"
	"github.com/RodenPaul86/docmatic/pkg/jobs"
	"github.com/RodenPaul86/docmatic/pkg/pdfimport"
)

// JobTypeCapture identifies capture jobs on the captures queue.
const JobTypeCapture = "capture.assemble"

const (
	captureRetention  = time.Hour
	scanNameLayout    = "Jan 2, 2006 at 3:04 PM"
	defaultImportName = "Imported Document"
)

type pageAssembler interface {
	Assemble(ctx context.Context, src PageSource, quality float64) ([]models.Page, error)
}

type documentCreator interface {
	Create(ctx context.Context, name string, pages []models.Page) (*models.Document, error)
}

type creationGate interface {
	CheckCreationAllowed(ctx context.Context) error
}

type pdfOpener interface {
	Open(data []byte, dpi float64) (*pdfimport.Source, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// CaptureConfig sets encode quality per capture source.
type CaptureConfig struct {
	ScanQuality   float64
	ImportQuality float64
	ImportDPI     float64
}

type captureEntry struct {
	job     models.CaptureJob
	name    string
	source  PageSource
	quality float64
	cancel  context.CancelFunc
	done    chan struct{}
}

// CaptureService tracks capture jobs from submission until their document is committed.
type CaptureService struct {
	assembler pageAssembler
	documents documentCreator
	quota     creationGate
	codec     imaging.Codec
	importer  pdfOpener
	queue     jobEnqueuer
	config    CaptureConfig
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*captureEntry
}

// NewCaptureService constructs a CaptureService. UseQueue must be called before jobs run
// asynchronously; without a queue, submissions are processed inline. A nil importer
// rejects PDF imports.
func NewCaptureService(assembler pageAssembler, documents documentCreator, quota creationGate, codec imaging.Codec, importer pdfOpener, cfg CaptureConfig, metrics *MetricsService, logger *zap.Logger) *CaptureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codec == nil {
		codec = imaging.NewJPEGCodec()
	}
	if cfg.ScanQuality <= 0 {
		cfg.ScanQuality = 0.65
	}
	if cfg.ImportQuality <= 0 {
		cfg.ImportQuality = 0.85
	}
	return &CaptureService{
		assembler: assembler,
		documents: documents,
		quota:     quota,
		codec:     codec,
		importer:  importer,
		config:    cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]*captureEntry),
	}
}

// UseQueue sets the worker queue that runs capture jobs.
func (s *CaptureService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// SubmitScan queues a capture of camera images. A blank name defaults to the capture time.
func (s *CaptureService) SubmitScan(ctx context.Context, name string, blobs [][]byte) (*models.CaptureJob, error) {
	if len(blobs) == 0 {
		return nil, appErrors.ErrCaptureFailure
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Scan " + s.now().Format(scanNameLayout)
	}
	return s.submit(ctx, models.CaptureSourceScan, name, NewScanSource(blobs, s.codec), s.config.ScanQuality)
}

// SubmitImport queues a capture of an uploaded PDF. A blank name defaults to the file name
// without its extension.
func (s *CaptureService) SubmitImport(ctx context.Context, name, filename string, data []byte) (*models.CaptureJob, error) {
	if s.importer == nil {
		return nil, appErrors.Clone(appErrors.ErrCaptureFailure, "PDF import is unavailable.")
	}
	src, err := s.importer.Open(data, s.config.ImportDPI)
	if err != nil {
		s.logger.Warn("pdf import rejected", zap.String("filename", filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrCaptureFailure.Code, appErrors.ErrCaptureFailure.Status, "This PDF could not be read.")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = importName(filename)
	}
	return s.submit(ctx, models.CaptureSourceImport, name, src, s.config.ImportQuality)
}

func importName(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return defaultImportName
	}
	return base
}

func (s *CaptureService) submit(ctx context.Context, source models.CaptureSource, name string, src PageSource, quality float64) (*models.CaptureJob, error) {
	if err := s.quota.CheckCreationAllowed(ctx); err != nil {
		return nil, err
	}

	entry := &captureEntry{
		job: models.CaptureJob{
			ID:        uuid.NewString(),
			Source:    source,
			Status:    models.CaptureStatusQueued,
			PageCount: src.Len(),
			CreatedAt: s.now().UTC(),
		},
		name:    name,
		source:  src,
		quality: quality,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.pruneLocked()
	s.entries[entry.job.ID] = entry
	snapshot := entry.job
	s.mu.Unlock()

	job := jobs.Job{ID: entry.job.ID, Type: JobTypeCapture, Payload: entry.job.ID}
	if s.queue == nil {
		_ = s.HandleJob(context.WithoutCancel(ctx), job)
		return s.Get(entry.job.ID)
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.finish(entry, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "capture queue unavailable"))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue capture")
	}
	return &snapshot, nil
}

// HandleJob runs one capture job. It never returns an error for domain failures so the
// queue does not retry a batch the user already saw fail.
func (s *CaptureService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeCapture {
		return fmt.Errorf("unknown capture job type %q", job.Type)
	}
	id, _ := job.Payload.(string)

	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok || entry.job.Status != models.CaptureStatusQueued {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	entry.cancel = cancel
	entry.job.Status = models.CaptureStatusProcessing
	src := entry.source
	s.mu.Unlock()
	defer cancel()

	started := s.now()
	pages, err := s.assembler.Assemble(runCtx, src, entry.quality)
	if err == nil {
		// A cancel that arrived after the last page must still keep the batch out of the store.
		err = runCtx.Err()
	}
	var doc *models.Document
	if err == nil {
		doc, err = s.documents.Create(runCtx, entry.name, pages)
	}
	s.finish(entry, doc, err)
	s.metrics.CaptureFinished(string(entry.job.Source), string(s.status(entry)), s.now().Sub(started))
	return nil
}

// Get returns a snapshot of a tracked capture job.
func (s *CaptureService) Get(id string) (*models.CaptureJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "capture not found")
	}
	job := entry.job
	return &job, nil
}

// Cancel stops a queued or running capture. Nothing is persisted for a cancelled capture.
// Cancelling a finished capture returns ErrConflict.
func (s *CaptureService) Cancel(id string) (*models.CaptureJob, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "capture not found")
	}
	switch entry.job.Status {
	case models.CaptureStatusQueued:
		// Settled under the same lock HandleJob uses to claim the job, so a worker can no
		// longer pick it up.
		s.settleLocked(entry, nil, context.Canceled)
		src := s.detachLocked(entry)
		s.mu.Unlock()
		s.release(entry, src, context.Canceled)
	case models.CaptureStatusProcessing:
		cancel := entry.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	default:
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "capture already finished")
	}
	return s.Get(id)
}

// Wait blocks until the capture reaches a terminal state or ctx ends.
func (s *CaptureService) Wait(ctx context.Context, id string) (*models.CaptureJob, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "capture not found")
	}
	select {
	case <-entry.done:
		return s.Get(id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish records the outcome and releases waiters. Only the first outcome is kept.
func (s *CaptureService) finish(entry *captureEntry, doc *models.Document, err error) {
	s.mu.Lock()
	settled := s.settleLocked(entry, doc, err)
	src := s.detachLocked(entry)
	s.mu.Unlock()
	if settled {
		s.release(entry, src, err)
	} else {
		closeSource(src, s.logger)
	}
}

// settleLocked moves entry into its terminal state. It reports false when the entry was
// already terminal. Callers hold s.mu.
func (s *CaptureService) settleLocked(entry *captureEntry, doc *models.Document, err error) bool {
	if entry.job.Status.Terminal() {
		return false
	}
	finished := s.now().UTC()
	entry.job.FinishedAt = &finished
	switch {
	case err == nil:
		entry.job.Status = models.CaptureStatusCompleted
		entry.job.DocumentID = doc.ID
	case errors.Is(err, context.Canceled):
		entry.job.Status = models.CaptureStatusCancelled
	default:
		entry.job.Status = models.CaptureStatusFailed
		appErr := appErrors.FromError(err)
		entry.job.Error = &models.CaptureError{Code: appErr.Code, Message: appErr.Message}
	}
	return true
}

func (s *CaptureService) detachLocked(entry *captureEntry) PageSource {
	src := entry.source
	entry.source = nil
	return src
}

// release runs once per entry, after it was settled.
func (s *CaptureService) release(entry *captureEntry, src PageSource, err error) {
	closeSource(src, s.logger)
	close(entry.done)

	s.mu.Lock()
	id, status := entry.job.ID, entry.job.Status
	s.mu.Unlock()
	if err != nil && status == models.CaptureStatusFailed {
		s.logger.Warn("capture failed", zap.String("capture_id", id), zap.Error(err))
	} else {
		s.logger.Info("capture finished", zap.String("capture_id", id), zap.String("status", string(status)))
	}
}

func closeSource(src PageSource, logger *zap.Logger) {
	closer, ok := src.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to release page source", zap.Error(err))
	}
}

func (s *CaptureService) status(entry *captureEntry) models.CaptureStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return entry.job.Status
}

func (s *CaptureService) pruneLocked() {
	cutoff := s.now().Add(-captureRetention)
	for id, entry := range s.entries {
		if entry.job.Status.Terminal() && entry.job.FinishedAt != nil && entry.job.FinishedAt.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}
