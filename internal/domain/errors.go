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
	ErrCodeUpstream         = "UPSTREAM_ERROR"
	ErrCodePartialIngestion = "PARTIAL_INGESTION"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyContent         = NewDomainError(ErrCodeValidation, "resource content cannot be empty")
	ErrNoQueries            = NewDomainError(ErrCodeValidation, "at least one query is required")
	ErrNoSections           = NewDomainError(ErrCodeValidation, "at least one section spec is required")
	ErrWrongDimensions      = NewDomainError(ErrCodeValidation, "embedding has unexpected dimensionality")
)

// Not found errors
var (
	ErrResourceNotFound = NewDomainError(ErrCodeNotFound, "resource not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "embedded chunk not found")
)

// Authorization errors
var (
	ErrInvalidToken = NewDomainError(ErrCodeUnauthorized, "invalid api token")
)

// ErrAllSectionsFailed means every section draft failed. The failures
// are model-side, so the error is classified upstream, not client.
var ErrAllSectionsFailed = NewDomainError(ErrCodeUpstream, "every section failed to generate")

// UpstreamError wraps a failed model or embedding call. Calls are never
// retried internally, so the raw cause is preserved for the caller.
func UpstreamError(op string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeUpstream, op+" call failed", err)
}

// PartialIngestionError reports an ingestion that persisted the resource but
// failed to embed some of its chunks. This is an accepted terminal state;
// re-ingestion is the only repair path.
type PartialIngestionError struct {
	ResourceID   string
	TotalChunks  int
	FailedChunks int
	Cause        error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("[%s] resource %s ingested with %d/%d chunks failed: %v",
		ErrCodePartialIngestion, e.ResourceID, e.FailedChunks, e.TotalChunks, e.Cause)
}

func (e *PartialIngestionError) Unwrap() error {
	return e.Cause
}
