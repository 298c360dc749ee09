package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/RodenPaul86/docmatic/internal/models"
)

const documentColumns = `d.id, d.name, d.created_at, d.is_locked,
	(SELECT COUNT(*) FROM pages p WHERE p.document_id = d.id) AS page_count`

// DocumentRepository persists documents and their pages.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateWithPages inserts the document and every page in one transaction.
func (r *DocumentRepository) CreateWithPages(ctx context.Context, doc *models.Document, pages []models.Page) (err error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	seen := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if _, dup := seen[p.Position]; dup {
			return fmt.Errorf("duplicate page position %d", p.Position)
		}
		seen[p.Position] = struct{}{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertDocument = `INSERT INTO documents (id, name, created_at, is_locked) VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, insertDocument, doc.ID, doc.Name, doc.CreatedAt, doc.IsLocked); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	const insertPage = `INSERT INTO pages (id, document_id, position, image, created_at) VALUES ($1, $2, $3, $4, $5)`
	for i := range pages {
		page := &pages[i]
		if page.ID == "" {
			page.ID = uuid.NewString()
		}
		page.DocumentID = doc.ID
		if page.CreatedAt.IsZero() {
			page.CreatedAt = doc.CreatedAt
		}
		if _, err = tx.ExecContext(ctx, insertPage, page.ID, page.DocumentID, page.Position, page.Image, page.CreatedAt); err != nil {
			return fmt.Errorf("insert page %d: %w", page.Position, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit document: %w", err)
	}
	doc.PageCount = len(pages)
	return nil
}

// GetByID loads one document with its page count.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d WHERE d.id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, noRowsOnInvalidID(err)
	}
	return &doc, nil
}

// List returns documents newest first, optionally filtered by a case-insensitive name substring.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + documentColumns + ` FROM documents d`)
	args := make([]interface{}, 0, 1)

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		builder.WriteString(fmt.Sprintf(` WHERE d.name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	builder.WriteString(" ORDER BY d.created_at DESC, d.id")

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	docs := make([]models.Document, 0)
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListPages returns the document's pages in position order.
func (r *DocumentRepository) ListPages(ctx context.Context, documentID string) ([]models.Page, error) {
	const query = `SELECT id, document_id, position, image, created_at FROM pages WHERE document_id = $1 ORDER BY position ASC`
	pages := make([]models.Page, 0)
	if err := r.db.SelectContext(ctx, &pages, query, documentID); err != nil {
		return nil, fmt.Errorf("list pages: %w", noRowsOnInvalidID(err))
	}
	return pages, nil
}

// GetPage loads a single page by position.
func (r *DocumentRepository) GetPage(ctx context.Context, documentID string, position int) (*models.Page, error) {
	const query = `SELECT id, document_id, position, image, created_at FROM pages WHERE document_id = $1 AND position = $2`
	var page models.Page
	if err := r.db.GetContext(ctx, &page, query, documentID, position); err != nil {
		return nil, noRowsOnInvalidID(err)
	}
	return &page, nil
}

// Rename updates the display name.
func (r *DocumentRepository) Rename(ctx context.Context, id, name string) error {
	const query = `UPDATE documents SET name = $2 WHERE id = $1`
	return r.execOne(ctx, "rename document", query, id, name)
}

// SetLocked updates the persisted lock flag.
func (r *DocumentRepository) SetLocked(ctx context.Context, id string, locked bool) error {
	const query = `UPDATE documents SET is_locked = $2 WHERE id = $1`
	return r.execOne(ctx, "set document lock", query, id, locked)
}

// Delete removes the document's pages and then the document inside one transaction.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete pages: %w", noRowsOnInvalidID(err))
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document delete rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// CreationTimes returns every document's creation timestamp.
func (r *DocumentRepository) CreationTimes(ctx context.Context) ([]time.Time, error) {
	times := make([]time.Time, 0)
	if err := r.db.SelectContext(ctx, &times, `SELECT created_at FROM documents ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list creation times: %w", err)
	}
	return times, nil
}

// NamesWithPrefix returns names equal to prefix or starting with it.
func (r *DocumentRepository) NamesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	const query = `SELECT name FROM documents WHERE name = $1 OR name LIKE $2 ESCAPE '\'`
	names := make([]string, 0)
	if err := r.db.SelectContext(ctx, &names, query, prefix, escapeLike(prefix)+"%"); err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	return names, nil
}

// Snapshot returns the widget projection of the newest documents.
func (r *DocumentRepository) Snapshot(ctx context.Context, limit int) ([]models.DocumentSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, name, created_at, is_locked FROM documents ORDER BY created_at DESC, id LIMIT $1`
	items := make([]models.DocumentSummary, 0)
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("list document summaries: %w", err)
	}
	return items, nil
}

func (r *DocumentRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, noRowsOnInvalidID(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// noRowsOnInvalidID reports an id Postgres cannot cast to uuid as a missing row.
func noRowsOnInvalidID(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		return sql.ErrNoRows
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
