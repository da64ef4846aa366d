package document

import (
	"fmt"
	"strings"

	"github.com/docgen/backend/internal/domain/shared"
)

// ViolationReason is the reason code of a field violation
type ViolationReason string

const (
	ReasonMissing       ViolationReason = "missing"
	ReasonTypeMismatch  ViolationReason = "type_mismatch"
	ReasonOutOfRange    ViolationReason = "out_of_range"
	ReasonInvalidFormat ViolationReason = "invalid_format"
)

// FieldViolation reports one offending field. Field is a path: nested list
// items are addressed as "items[1].quantity".
type FieldViolation struct {
	Field   string          `json:"field"`
	Reason  ViolationReason `json:"reason"`
	Message string          `json:"message,omitempty"`
}

func (v FieldViolation) String() string {
	return v.Field + ": " + string(v.Reason)
}

// ValidationError carries every violation found in one validation pass
type ValidationError struct {
	Violations []FieldViolation
}

// NewValidationError creates a ValidationError from violations
func NewValidationError(violations ...FieldViolation) *ValidationError {
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches shared.ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrValidation
}

// Render error codes
const (
	RenderErrLayoutMismatch    = "LAYOUT_MISMATCH"
	RenderErrUnsupportedFormat = "UNSUPPORTED_FORMAT"
	RenderErrPayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	RenderErrEncodeFailed      = "ENCODE_FAILED"
	RenderErrTimeout           = "RENDER_TIMEOUT"
	RenderErrEngineUnavailable = "ENGINE_UNAVAILABLE"
)

// RenderError signals that a template and its data could not be rendered.
// It is a server-side fault, never a user-correctable one.
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("render error [%s]: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Is matches shared.ErrRender
func (e *RenderError) Is(target error) bool {
	return target == shared.ErrRender
}

// StorageError wraps a persistence failure of artifact bytes or metadata
type StorageError struct {
	Op    string
	Cause error
}

// NewStorageError creates a new StorageError
func NewStorageError(op string, cause error) *StorageError {
	return &StorageError{Op: op, Cause: cause}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is matches shared.ErrStorage
func (e *StorageError) Is(target error) bool {
	return target == shared.ErrStorage
}
