package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors. Typed errors elsewhere in the domain match one of
// these through errors.Is.
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrForbidden     = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrExpired       = NewDomainError("EXPIRED", "Resource has expired")
	ErrQuotaExceeded = NewDomainError("QUOTA_EXCEEDED", "Usage quota exceeded")
	ErrValidation    = NewDomainError("VALIDATION_FAILED", "One or more fields are invalid")
	ErrRender        = NewDomainError("RENDER_FAILED", "Document could not be rendered")
	ErrStorage       = NewDomainError("STORAGE_FAILED", "Document could not be stored")
)
