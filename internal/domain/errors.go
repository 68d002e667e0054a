package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code and message so wrapped sentinels compare equal.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeProvider      = "PROVIDER_ERROR"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "search text cannot be empty")
	ErrQueryTooLong      = NewDomainError(ErrCodeValidation, "search text exceeds maximum length")
	ErrEmptyBatch        = NewDomainError(ErrCodeValidation, "batch contains no line items")
	ErrInvalidSearchMode = NewDomainError(ErrCodeValidation, "invalid search mode")
)

// Availability errors
var (
	ErrStrategyUnavailable  = NewDomainError(ErrCodeUnavailable, "no search strategy available")
	ErrEmbedderUnavailable  = NewDomainError(ErrCodeUnavailable, "embedding service not configured")
	ErrDimensionMismatch    = NewDomainError(ErrCodeUnavailable, "embedding dimension does not match catalog vectors")
	ErrEmbeddingProvider    = NewDomainError(ErrCodeProvider, "embedding provider error")
	ErrInterpreterProvider  = NewDomainError(ErrCodeProvider, "query interpreter error")
	ErrInvalidPartitionName = NewDomainError(ErrCodeValidation, "invalid vendor partition name")
)

// Not found errors
var (
	ErrBOMNotFound = NewDomainError(ErrCodeNotFound, "BOM document not found")
)

// IsValidationError reports whether err is, or wraps, a validation error.
func IsValidationError(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrCodeValidation
	}
	return false
}

// Wrap returns a copy of the sentinel carrying cause. The result still
// matches the sentinel with errors.Is.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, cause)
}
