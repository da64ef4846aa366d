package generation

import (
	"fmt"

	"github.com/docgen/backend/internal/domain/shared"
)

// Fault kinds
const (
	FaultRender  = "render"
	FaultStorage = "storage"
)

// FaultError is an internal failure surfaced to callers without detail.
// The cause is logged under Reference so operators can correlate a report
// with the log entry.
type FaultError struct {
	Kind      string
	Reference string
	cause     error
}

func newFault(kind, reference string, cause error) *FaultError {
	return &FaultError{Kind: kind, Reference: reference, cause: cause}
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("document generation failed (reference %s)", e.Reference)
}

// Unwrap returns the logged cause
func (e *FaultError) Unwrap() error {
	return e.cause
}

// Is matches shared.ErrRender or shared.ErrStorage by kind
func (e *FaultError) Is(target error) bool {
	switch e.Kind {
	case FaultRender:
		return target == shared.ErrRender
	case FaultStorage:
		return target == shared.ErrStorage
	}
	return false
}
