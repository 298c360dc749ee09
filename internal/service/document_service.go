package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/jobs"
)

// JobTypeDeleteDocument is the job type carrying a deferred document deletion.
const JobTypeDeleteDocument = "document.delete"

type documentRepository interface {
	CreateWithPages(ctx context.Context, doc *models.Document, pages []models.Page) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	ListPages(ctx context.Context, documentID string) ([]models.Page, error)
	GetPage(ctx context.Context, documentID string, position int) (*models.Page, error)
	Rename(ctx context.Context, id, name string) error
	SetLocked(ctx context.Context, id string, locked bool) error
	Delete(ctx context.Context, id string) error
	NamesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

type quotaTracker interface {
	BeginChange() func()
	CheckCreationAllowed(ctx context.Context) error
	RecordCreation(createdAt time.Time)
	RecordDeletion(createdAt time.Time)
}

type widgetRefresher interface {
	Refresh(ctx context.Context) error
}

type delayedScheduler interface {
	EnqueueAfter(job jobs.Job, delay time.Duration) error
}

// DocumentConfig tunes document lifecycle behaviour.
type DocumentConfig struct {
	// DeletionDelay defers the transactional delete so open viewers can dismiss first.
	DeletionDelay time.Duration
}

type deletionRequest struct {
	DocumentID string
	CreatedAt  time.Time
}

type renameRequest struct {
	Name string `validate:"required,max=255"`
}

// DocumentService owns the Document lifecycle: create, rename, lock, duplicate and delete.
type DocumentService struct {
	repo      documentRepository
	quota     quotaTracker
	gate      *LockGate
	widgets   widgetRefresher
	scheduler delayedScheduler
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       DocumentConfig
	now       func() time.Time

	createMu sync.Mutex
	toggles  *keyedMutex

	pendingMu sync.RWMutex
	pending   map[string]deletionRequest
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentRepository, quota quotaTracker, gate *LockGate, widgets widgetRefresher, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg DocumentConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if gate == nil {
		gate = NewLockGate(nil, logger)
	}
	return &DocumentService{
		repo:      repo,
		quota:     quota,
		gate:      gate,
		widgets:   widgets,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		toggles:   newKeyedMutex(),
		pending:   make(map[string]deletionRequest),
	}
}

// UseScheduler sets the queue that runs deferred deletions. Without one, deletions run inline.
func (s *DocumentService) UseScheduler(scheduler delayedScheduler) {
	s.scheduler = scheduler
}

// Create persists a new document with all its pages. The quota engine is told only after
// the insert commits, and the widget refresh follows that.
func (s *DocumentService) Create(ctx context.Context, name string, pages []models.Page) (*models.Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document name is required")
	}
	if len(pages) == 0 {
		return nil, appErrors.ErrCaptureFailure
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if err := s.quota.CheckCreationAllowed(ctx); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	return s.insert(ctx, doc, pages)
}

func (s *DocumentService) insert(ctx context.Context, doc *models.Document, pages []models.Page) (*models.Document, error) {
	if err := s.commitCreation(ctx, doc, pages); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Error("failed to persist document", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, appErrors.ErrPersistenceFailure.Message)
	}
	s.metrics.DocumentCreated()
	s.refreshWidgets(ctx)
	s.logger.Info("document created", zap.String("document_id", doc.ID), zap.Int("pages", len(pages)))
	return doc, nil
}

func (s *DocumentService) commitCreation(ctx context.Context, doc *models.Document, pages []models.Page) error {
	done := s.quota.BeginChange()
	defer done()
	if err := s.repo.CreateWithPages(ctx, doc, pages); err != nil {
		return err
	}
	s.quota.RecordCreation(doc.CreatedAt)
	return nil
}

func (s *DocumentService) commitDeletion(ctx context.Context, req deletionRequest) error {
	done := s.quota.BeginChange()
	defer done()
	if err := s.repo.Delete(ctx, req.DocumentID); err != nil {
		return err
	}
	s.quota.RecordDeletion(req.CreatedAt)
	return nil
}

// Get returns a document unless it is missing or pending deletion.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	if s.isPending(id) {
		return nil, appErrors.ErrNotFound
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "document not found", "failed to load document")
	}
	return doc, nil
}

// List returns documents newest first, hiding any pending deletion.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	visible := docs[:0]
	for _, doc := range docs {
		if !s.isPending(doc.ID) {
			visible = append(visible, doc)
		}
	}
	return visible, nil
}

// Content returns the document and its ordered pages if the session may view them.
func (s *DocumentService) Content(ctx context.Context, sessionID, id string) (*models.Document, []models.Page, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !s.gate.CanView(sessionID, doc) {
		return nil, nil, appErrors.ErrDocumentLocked
	}
	pages, err := s.repo.ListPages(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pages")
	}
	return doc, pages, nil
}

// GetPageImage returns one page's encoded bytes if the session may view the document.
func (s *DocumentService) GetPageImage(ctx context.Context, sessionID, id string, position int) ([]byte, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanView(sessionID, doc) {
		return nil, appErrors.ErrDocumentLocked
	}
	page, err := s.repo.GetPage(ctx, id, position)
	if err != nil {
		return nil, mapNotFound(err, "page not found", "failed to load page")
	}
	return page.Image, nil
}

// Rename changes the display name. Names are trimmed and must not be empty.
func (s *DocumentService) Rename(ctx context.Context, id, name string) (*models.Document, error) {
	req := renameRequest{Name: strings.TrimSpace(name)}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "document name is required")
	}
	if s.isPending(id) {
		return nil, appErrors.ErrNotFound
	}
	if err := s.repo.Rename(ctx, id, req.Name); err != nil {
		return nil, mapNotFound(err, "document not found", "failed to rename document")
	}
	s.refreshWidgets(ctx)
	return s.Get(ctx, id)
}

// Lock sets the persisted lock flag and closes every open viewer of the document.
func (s *DocumentService) Lock(ctx context.Context, sessionID, id string) (*models.Document, error) {
	release := s.toggles.Lock(id)
	defer release()

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsLocked {
		return doc, nil
	}
	if err := s.repo.SetLocked(ctx, id, true); err != nil {
		return nil, mapNotFound(err, "document not found", "failed to lock document")
	}
	doc.IsLocked = true
	if closed := s.gate.ForceClose(id); closed > 0 {
		s.logger.Info("closed viewers of locked document", zap.String("document_id", id), zap.Int("viewers", closed))
	}
	s.refreshWidgets(ctx)
	return doc, nil
}

// Unlock clears the persisted lock flag. The calling session must be authenticated for
// the document.
func (s *DocumentService) Unlock(ctx context.Context, sessionID, id string) (*models.Document, error) {
	release := s.toggles.Lock(id)
	defer release()

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsLocked {
		return doc, nil
	}
	if !s.gate.IsAuthenticated(sessionID, id) {
		return nil, appErrors.ErrDocumentLocked
	}
	if err := s.repo.SetLocked(ctx, id, false); err != nil {
		return nil, mapNotFound(err, "document not found", "failed to unlock document")
	}
	doc.IsLocked = false
	s.refreshWidgets(ctx)
	return doc, nil
}

// Authenticate runs the lock challenge for the document within the session.
func (s *DocumentService) Authenticate(ctx context.Context, sessionID, id, credential string) (*models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authenticate(ctx, sessionID, doc, credential); err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenViewer registers that the session is displaying the document.
func (s *DocumentService) OpenViewer(ctx context.Context, sessionID, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.OpenViewer(sessionID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CloseViewer registers that the session stopped displaying the document.
func (s *DocumentService) CloseViewer(sessionID, id string) {
	s.gate.CloseViewer(sessionID, id)
}

// Duplicate deep-copies the document's pages into a new document with a unique name.
// The copy keeps the source's lock flag and counts as a creation.
func (s *DocumentService) Duplicate(ctx context.Context, sessionID, id string) (*models.Document, error) {
	source, pages, err := s.Content(ctx, sessionID, id)
	if err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	if err := s.quota.CheckCreationAllowed(ctx); err != nil {
		return nil, err
	}
	name, err := s.uniqueCopyName(ctx, source.Name)
	if err != nil {
		return nil, err
	}

	copies := make([]models.Page, len(pages))
	for i, p := range pages {
		img := make([]byte, len(p.Image))
		copy(img, p.Image)
		copies[i] = models.Page{Position: p.Position, Image: img}
	}
	doc := &models.Document{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		IsLocked:  source.IsLocked,
	}
	return s.insert(ctx, doc, copies)
}

func (s *DocumentService) uniqueCopyName(ctx context.Context, base string) (string, error) {
	names, err := s.repo.NamesWithPrefix(ctx, base)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document names")
	}
	return nextCopyName(base, names), nil
}

// nextCopyName returns base, then "base (Copy)", then "base (Copy N)" for N >= 2,
// whichever is first absent from taken.
func nextCopyName(base string, taken []string) string {
	used := make(map[string]struct{}, len(taken))
	for _, n := range taken {
		used[n] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base
	}
	candidate := base + " (Copy)"
	for n := 2; ; n++ {
		if _, ok := used[candidate]; !ok {
			return candidate
		}
		candidate = fmt.Sprintf("%s (Copy %d)", base, n)
	}
}

// Delete hides the document at once and removes it with its pages after the configured
// delay. Locked documents require an authenticated session.
func (s *DocumentService) Delete(ctx context.Context, sessionID, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.gate.CanView(sessionID, doc) {
		return appErrors.ErrDocumentLocked
	}

	req := deletionRequest{DocumentID: doc.ID, CreatedAt: doc.CreatedAt}
	s.markPending(req)
	s.gate.ForceClose(id)

	if s.cfg.DeletionDelay <= 0 || s.scheduler == nil {
		return s.purge(ctx, req)
	}
	job := jobs.Job{ID: doc.ID, Type: JobTypeDeleteDocument, Payload: req}
	if err := s.scheduler.EnqueueAfter(job, s.cfg.DeletionDelay); err != nil {
		s.logger.Warn("deferred delete unavailable, deleting inline", zap.String("document_id", id), zap.Error(err))
		return s.purge(ctx, req)
	}
	return nil
}

// HandleJob runs queued document jobs.
func (s *DocumentService) HandleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeDeleteDocument:
		req, ok := job.Payload.(deletionRequest)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
		}
		return s.purge(ctx, req)
	default:
		return fmt.Errorf("unknown document job type %q", job.Type)
	}
}

// FlushDeletions removes every document still waiting out its deletion delay. Run it
// after the deletion queue has stopped so no delayed job is lost on shutdown.
func (s *DocumentService) FlushDeletions(ctx context.Context) error {
	s.pendingMu.RLock()
	reqs := make([]deletionRequest, 0, len(s.pending))
	for _, req := range s.pending {
		reqs = append(reqs, req)
	}
	s.pendingMu.RUnlock()

	var errs []error
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.purge(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", req.DocumentID, err))
		}
	}
	if len(reqs) > 0 {
		s.logger.Info("flushed pending deletions", zap.Int("count", len(reqs)), zap.Int("failed", len(errs)))
	}
	return errors.Join(errs...)
}

func (s *DocumentService) purge(ctx context.Context, req deletionRequest) error {
	defer s.clearPending(req.DocumentID)

	if err := s.commitDeletion(ctx, req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		s.logger.Error("failed to delete document", zap.String("document_id", req.DocumentID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrPersistenceFailure.Code, appErrors.ErrPersistenceFailure.Status, "We couldn't delete your document. Please try again.")
	}
	s.metrics.DocumentDeleted()
	s.refreshWidgets(ctx)
	s.logger.Info("document deleted", zap.String("document_id", req.DocumentID))
	return nil
}

func (s *DocumentService) refreshWidgets(ctx context.Context) {
	if s.widgets == nil {
		return
	}
	if err := s.widgets.Refresh(ctx); err != nil {
		s.logger.Warn("widget refresh failed", zap.Error(err))
	}
}

func (s *DocumentService) markPending(req deletionRequest) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[req.DocumentID] = req
}

func (s *DocumentService) clearPending(id string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, id)
}

func (s *DocumentService) isPending(id string) bool {
	s.pendingMu.RLock()
	defer s.pendingMu.RUnlock()
	_, ok := s.pending[id]
	return ok
}

func mapNotFound(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
