package models

import "time"

// CaptureSource identifies where raw pages came from.
type CaptureSource string

const (
	CaptureSourceScan   CaptureSource = "scan"
	CaptureSourceImport CaptureSource = "import"
)

// CaptureStatus tracks a background assembly job.
type CaptureStatus string

const (
	CaptureStatusQueued     CaptureStatus = "queued"
	CaptureStatusProcessing CaptureStatus = "processing"
	CaptureStatusCompleted  CaptureStatus = "completed"
	CaptureStatusFailed     CaptureStatus = "failed"
	CaptureStatusCancelled  CaptureStatus = "cancelled"
)

// CaptureJob is the externally visible state of one capture.
type CaptureJob struct {
	ID         string        `json:"id"`
	Source     CaptureSource `json:"source"`
	Status     CaptureStatus `json:"status"`
	PageCount  int           `json:"pageCount"`
	DocumentID string        `json:"documentId,omitempty"`
	Error      *CaptureError `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
}

// CaptureError is the plain-language failure reported for a capture.
type CaptureError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Terminal reports whether the job will not change state again.
func (s CaptureStatus) Terminal() bool {
	return s == CaptureStatusCompleted || s == CaptureStatusFailed || s == CaptureStatusCancelled
}
