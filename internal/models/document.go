package models

import "time"

// Document is the persisted aggregate for one scanned or imported file.
type Document struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	IsLocked  bool      `db:"is_locked" json:"isLocked"`
	PageCount int       `db:"page_count" json:"pageCount"`
}

// Page is one image-backed unit of a Document. Image bytes never change after insert.
type Page struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"documentId"`
	Position   int       `db:"position" json:"position"`
	Image      []byte    `db:"image" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// DocumentFilter narrows library listings.
type DocumentFilter struct {
	Query  string
	Limit  int
	Offset int
}

// DocumentSummary is the widget-safe projection of a Document. It never carries page bytes.
type DocumentSummary struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	IsLocked  bool      `db:"is_locked" json:"isLocked"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
