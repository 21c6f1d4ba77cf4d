// Package errors defines the error taxonomy used across tabcanvas.
//
// Renderer-level code never lets these errors escape into the page: they are
// converted into visible markup at the renderer boundary and logged. Outside
// the renderers (config loading, site parsing, the preview server) they are
// returned like any other error and can be classified with the Is* helpers.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeRender     ErrorType = "render"
	ErrorTypeDeferred   ErrorType = "deferred"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// CanvasError is a structured error type with context.
type CanvasError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *CanvasError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CanvasError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *CanvasError) Is(target error) bool {
	var t *CanvasError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *CanvasError) WithContext(key string, value interface{}) *CanvasError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *CanvasError) WithComponent(component string) *CanvasError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *CanvasError {
	return &CanvasError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *CanvasError {
	return &CanvasError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewRenderError creates a render error.
func NewRenderError(code, message string, cause error) *CanvasError {
	return &CanvasError{
		Type:        ErrorTypeRender,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewDeferredError creates an error for a failed post-render phase.
func NewDeferredError(code, message string, cause error) *CanvasError {
	return &CanvasError{
		Type:        ErrorTypeDeferred,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *CanvasError {
	return &CanvasError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *CanvasError {
	return &CanvasError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *CanvasError {
	return &CanvasError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ce *CanvasError
	if errors.As(err, &ce) {
		return ce.Recoverable
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return isType(err, ErrorTypeSecurity)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsDeferredError checks if an error came from a post-render phase.
func IsDeferredError(err error) bool {
	return isType(err, ErrorTypeDeferred)
}

func isType(err error, t ErrorType) bool {
	var ce *CanvasError
	if errors.As(err, &ce) {
		return ce.Type == t
	}

	return false
}

// Recovered converts a value returned by recover() into an internal error.
func Recovered(component string, r interface{}) *CanvasError {
	var cause error
	switch v := r.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("%v", v)
	}

	return NewInternalError("ERR_PANIC", "recovered from panic", cause).WithComponent(component)
}
