package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Trail error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"          // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"     // 404
	ErrHashFailed       ErrorCode = "HASH_FAILED"        // 422
	ErrCancelled        ErrorCode = "CANCELLED"          // 499
	ErrIndexWriteFailed ErrorCode = "INDEX_WRITE_FAILED" // 500
	ErrInternal         ErrorCode = "INTERNAL"           // 500
	ErrExtraction       ErrorCode = "EXTRACTION_FAILED"  // 502
)

// TrailError represents a structured error with code, status, and details.
type TrailError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *TrailError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *TrailError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TrailError {
	return &TrailError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an entry that is not indexed.
func NewNotFound(identifier string) *TrailError {
	return &TrailError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("entry not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file on disk.
func NewFileNotFound(path string) *TrailError {
	return &TrailError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewHashFailed creates a 422 error when a perceptual hash cannot be computed.
// Callers in the ingestion path treat it as non-fatal.
func NewHashFailed(path string, err error) *TrailError {
	msg := "cannot compute perceptual hash"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &TrailError{
		Code:    ErrHashFailed,
		Status:  422,
		Message: msg,
		Details: map[string]any{"path": path},
		cause:   err,
	}
}

// NewCancelled creates a 499 error when an operation is interrupted by its context.
func NewCancelled(operation string) *TrailError {
	return &TrailError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewIndexWriteFailed creates a 500 error for a failed write to a persistent store.
func NewIndexWriteFailed(store string, err error) *TrailError {
	msg := fmt.Sprintf("%s write failed", store)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &TrailError{
		Code:    ErrIndexWriteFailed,
		Status:  500,
		Message: msg,
		Details: map[string]any{"store": store},
		cause:   err,
	}
}

// NewExtraction creates a 502 error when the extractor fails for one screenshot.
func NewExtraction(filename string, err error) *TrailError {
	msg := fmt.Sprintf("extraction failed for %s", filename)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &TrailError{
		Code:    ErrExtraction,
		Status:  502,
		Message: msg,
		Details: map[string]any{"filename": filename},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *TrailError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &TrailError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is a TrailError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TrailError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// As returns the TrailError in err's chain, if any.
func As(err error) (*TrailError, bool) {
	var tErr *TrailError
	ok := stderrors.As(err, &tErr)
	return tErr, ok
}
