package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Pipeline errors. Messages are shown to users as-is.
var (
	ErrCaptureFailure        = New("CAPTURE_FAILURE", http.StatusUnprocessableEntity, "No pages were captured. Please try scanning again.")
	ErrEncodingFailure       = New("ENCODING_FAILURE", http.StatusUnprocessableEntity, "A page could not be processed. Nothing was saved.")
	ErrPersistenceFailure    = New("PERSISTENCE_FAILURE", http.StatusInternalServerError, "We couldn't save your document. Please try again.")
	ErrSummarizationFailure  = New("SUMMARIZATION_FAILURE", http.StatusBadGateway, "Couldn't summarize this document.")
	ErrAuthenticationFailed  = New("AUTHENTICATION_FAILED", http.StatusUnauthorized, "Authentication failed. Please try again.")
	ErrBiometricsUnavailable = New("BIOMETRICS_UNAVAILABLE", http.StatusPreconditionFailed, "Biometric authentication is unavailable. Enable it in Settings.")
	ErrDocumentLocked        = New("DOCUMENT_LOCKED", http.StatusForbidden, "This document is locked.")
	ErrQuotaExceeded         = New("QUOTA_EXCEEDED", http.StatusPaymentRequired, "You've used all your free scans. Upgrade to keep scanning.")
	ErrExportFailure         = New("EXPORT_FAILURE", http.StatusUnprocessableEntity, "This document has no pages that could be exported.")
)

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code == target.Code
	}
	return false
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
