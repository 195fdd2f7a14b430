package domain

import "fmt"

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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeEmbeddingFailure = "EMBEDDING_FAILURE"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeTooLarge         = "TOO_LARGE"
)

// Validation errors
var (
	ErrInvalidDocumentType  = NewDomainError(ErrCodeValidation, "invalid document type")
	ErrInvalidIndexStatus   = NewDomainError(ErrCodeValidation, "invalid index status")
	ErrInvalidIndexJobState = NewDomainError(ErrCodeValidation, "invalid index job status")
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "document has no extractable text")
	ErrUnsupportedFormat    = NewDomainError(ErrCodeValidation, "unsupported document format")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrBodyTooLarge         = NewDomainError(ErrCodeTooLarge, "request body too large")
	ErrInvalidRating        = NewDomainError(ErrCodeValidation, "rating must be between 1 and 5")
	ErrEmptyCoverLetter     = NewDomainError(ErrCodeValidation, "cover letter content is empty")
)

// Not found errors
var (
	ErrDocumentNotFound    = NewDomainError(ErrCodeNotFound, "document not found")
	ErrProviderNotFound    = NewDomainError(ErrCodeNotFound, "provider not registered")
	ErrCoverLetterNotFound = NewDomainError(ErrCodeNotFound, "cover letter not found")
)

// Infrastructure errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrGeneratorUnavailable = NewDomainError(ErrCodeUnavailable, "text generator unavailable")
)

// EmbeddingFailure reports that one document could not be embedded. The
// document stays out of retrieval until it is re-indexed; nothing else is
// affected.
type EmbeddingFailure struct {
	DocumentID string
	Err        error
}

func (e *EmbeddingFailure) Error() string {
	return fmt.Sprintf("[%s] embedding failed for document %s: %v", ErrCodeEmbeddingFailure, e.DocumentID, e.Err)
}

func (e *EmbeddingFailure) Unwrap() error {
	return e.Err
}

// NewEmbeddingFailure wraps an embedding error for the given document
func NewEmbeddingFailure(documentID string, err error) *EmbeddingFailure {
	return &EmbeddingFailure{DocumentID: documentID, Err: err}
}
