package models

// SummaryResult is always returned to the caller; failures surface as a message.
type SummaryResult struct {
	DocumentID  string `json:"documentId"`
	Succeeded   bool   `json:"succeeded"`
	Summary     string `json:"summary,omitempty"`
	Message     string `json:"message,omitempty"`
	TargetWords int    `json:"targetWords"`
	PagesRead   int    `json:"pagesRead"`
	PagesFailed int    `json:"pagesFailed"`
}

// ExportLink is a signed, expiring link to a rendered PDF.
type ExportLink struct {
	DocumentID string `json:"documentId"`
	URL        string `json:"url"`
	Pages      int    `json:"pages"`
	ExpiresAt  string `json:"expiresAt"`
}
