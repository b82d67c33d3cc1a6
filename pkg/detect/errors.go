package detect

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrModelsNotLoaded is returned when Detect is called before a
	// successful LoadModels.
	ErrModelsNotLoaded = errors.New("detect: models not loaded")

	// ErrNoDetectors is returned when a cascade is built empty.
	ErrNoDetectors = errors.New("detect: at least one detector required")

	// ErrEmptyFrame is returned for a zero-length or undecodable frame.
	ErrEmptyFrame = errors.New("detect: empty frame")
)

// BackendError wraps an error with backend context.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("detect [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}

// CascadeError aggregates errors from every backend in a cascade.
type CascadeError struct {
	Errors []error
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	if len(e.Errors) == 0 {
		return "detect cascade: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("detect cascade: %v", e.Errors[0])
	}
	return fmt.Sprintf("detect cascade: all %d backends failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the cascade.
func (e *CascadeError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
