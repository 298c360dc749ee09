package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RodenPaul86/docmatic/internal/models"
	"github.com/RodenPaul86/docmatic/pkg/jobs"
)

// memDocumentRepo is an in-memory stand-in for the SQL repository.
type memDocumentRepo struct {
	mu        sync.Mutex
	docs      map[string]models.Document
	pages     map[string][]models.Page
	createErr error
	deleteErr error
	deletes   int
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: map[string]models.Document{}, pages: map[string][]models.Page{}}
}

func (r *memDocumentRepo) CreateWithPages(ctx context.Context, doc *models.Document, pages []models.Page) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	stored := make([]models.Page, len(pages))
	for i, p := range pages {
		p.ID = uuid.NewString()
		p.DocumentID = doc.ID
		p.CreatedAt = doc.CreatedAt
		stored[i] = p
	}
	doc.PageCount = len(pages)
	r.docs[doc.ID] = *doc
	r.pages[doc.ID] = stored
	return nil
}

func (r *memDocumentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	doc.PageCount = len(r.pages[id])
	return &doc, nil
}

func (r *memDocumentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Document, 0, len(r.docs))
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	for id, doc := range r.docs {
		if q != "" && !strings.Contains(strings.ToLower(doc.Name), q) {
			continue
		}
		doc.PageCount = len(r.pages[id])
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memDocumentRepo) ListPages(ctx context.Context, documentID string) ([]models.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pages := append([]models.Page(nil), r.pages[documentID]...)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Position < pages[j].Position })
	return pages, nil
}

func (r *memDocumentRepo) GetPage(ctx context.Context, documentID string, position int) (*models.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pages[documentID] {
		if p.Position == position {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memDocumentRepo) Rename(ctx context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Name = name
	r.docs[id] = doc
	return nil
}

func (r *memDocumentRepo) SetLocked(ctx context.Context, id string, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	doc.IsLocked = locked
	r.docs[id] = doc
	return nil
}

func (r *memDocumentRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.pages, id)
	delete(r.docs, id)
	r.deletes++
	return nil
}

func (r *memDocumentRepo) NamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, doc := range r.docs {
		if strings.HasPrefix(doc.Name, prefix) {
			names = append(names, doc.Name)
		}
	}
	return names, nil
}

func (r *memDocumentRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs), nil
}

func (r *memDocumentRepo) CreationTimes(ctx context.Context) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc.CreatedAt)
	}
	return out, nil
}

func (r *memDocumentRepo) Snapshot(ctx context.Context, limit int) ([]models.DocumentSummary, error) {
	docs, _ := r.List(ctx, models.DocumentFilter{})
	out := make([]models.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		if len(out) == limit {
			break
		}
		out = append(out, models.DocumentSummary{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt, IsLocked: d.IsLocked})
	}
	return out, nil
}

// seed stores a document directly, bypassing quota accounting.
func (r *memDocumentRepo) seed(name string, createdAt time.Time, images ...[]byte) models.Document {
	doc := models.Document{ID: uuid.NewString(), Name: name, CreatedAt: createdAt}
	pages := make([]models.Page, len(images))
	for i, img := range images {
		pages[i] = models.Page{Position: i, Image: img}
	}
	_ = r.CreateWithPages(context.Background(), &doc, pages)
	return doc
}

type widgetSpy struct {
	mu    sync.Mutex
	calls int
}

func (w *widgetSpy) Refresh(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return nil
}

func (w *widgetSpy) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// manualScheduler records delayed jobs so tests can run them explicitly.
type manualScheduler struct {
	jobs   []jobs.Job
	delays []time.Duration
}

func (m *manualScheduler) EnqueueAfter(job jobs.Job, delay time.Duration) error {
	m.jobs = append(m.jobs, job)
	m.delays = append(m.delays, delay)
	return nil
}
