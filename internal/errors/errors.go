package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the Annotex evaluation worker.
 *
 * Every failure surfaced by the pipeline carries a structured code so the
 * queue layer can decide between retrying and failing permanently.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Configuration / input errors (never retried)
	ErrorValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrorUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Lookup errors
	ErrorNotFound ErrorCode = "NOT_FOUND"

	// Pipeline errors (retryable)
	ErrorOCRFailed       ErrorCode = "OCR_FAILED"
	ErrorEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	ErrorRenderFailed    ErrorCode = "RENDER_FAILED"

	// Storage errors
	ErrorStorageFailed    ErrorCode = "STORAGE_FAILED"
	ErrorDatabaseFailed   ErrorCode = "DATABASE_FAILED"
	ErrorChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"
)

// EvaluationError represents a structured pipeline error
type EvaluationError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

func NewValidationError(message string) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorValidationFailed,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewUnsupportedFormatError(filename string) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("unsupported file format: %s", filename),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"filename": filename,
		},
	}
}

func NewNotFoundError(kind, id string) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorNotFound,
		Message:   fmt.Sprintf("%s not found: %s", kind, id),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"kind": kind,
			"id":   id,
		},
	}
}

func NewOCRFailedError(jobID string, cause error) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorOCRFailed,
		Message:   "OCR extraction failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEmbeddingFailedError(cause error) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorEmbeddingFailed,
		Message:   "embedding generation failed",
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewRenderFailedError(jobID string, cause error) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorRenderFailed,
		Message:   "annotation rendering failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorStorageFailed,
		Message:   "storage operation failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewDatabaseFailedError(jobID string, cause error) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorDatabaseFailed,
		Message:   "database operation failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewChecksumMismatchError(path, expected, actual string) *EvaluationError {
	return &EvaluationError{
		Code:      ErrorChecksumMismatch,
		Message:   fmt.Sprintf("checksum mismatch for %s", path),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"path":     path,
			"expected": expected,
			"actual":   actual,
		},
	}
}

// ToMap converts error to map for database storage
func (e *EvaluationError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

// CodeOf returns the structured code of err, or empty when err carries none.
func CodeOf(err error) ErrorCode {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsRetryable reports whether the queue layer should re-attempt after err.
// Validation and lookup errors are permanent; everything else is treated as
// transient.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrorValidationFailed, ErrorUnsupportedFormat, ErrorNotFound:
		return false
	default:
		return true
	}
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrorNotFound
}
