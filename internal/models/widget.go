package models

import "time"

// WidgetSnapshot is what home-screen widgets read: recent documents, newest first.
type WidgetSnapshot struct {
	GeneratedAt time.Time         `json:"generatedAt"`
	Documents   []DocumentSummary `json:"documents"`
}
