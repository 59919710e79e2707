package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies domain errors for handling decisions.
type ErrorCategory string

const (
	// ErrCatValidation indicates invalid input rejected before any side
	// effect. Never retryable.
	ErrCatValidation ErrorCategory = "validation"

	// ErrCatExecution indicates an external process failure.
	ErrCatExecution ErrorCategory = "execution"

	// ErrCatTimeout indicates an operation exceeded its deadline.
	ErrCatTimeout ErrorCategory = "timeout"

	// ErrCatNotFound indicates a missing resource (execution, pattern,
	// output).
	ErrCatNotFound ErrorCategory = "not_found"

	// ErrCatState indicates an operation invalid for the current
	// lifecycle state.
	ErrCatState ErrorCategory = "state"

	// ErrCatInternal indicates a bug or unexpected condition.
	ErrCatInternal ErrorCategory = "internal"
)

// Stable error codes used across the API surface.
const (
	CodeInvalidPatternName = "INVALID_PATTERN_NAME"
	CodeInvalidModelRef    = "INVALID_MODEL_REF"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeExecutableMissing  = "EXECUTABLE_MISSING"
	CodeSpawnFailed        = "SPAWN_FAILED"
	CodeExecutionFailed    = "EXECUTION_FAILED"
	CodeExecutionTimeout   = "EXECUTION_TIMEOUT"
	CodeExecutionNotFound  = "EXECUTION_NOT_FOUND"
	CodePatternNotFound    = "PATTERN_NOT_FOUND"
	CodeOutputNotFound     = "OUTPUT_NOT_FOUND"
	CodeAlreadyTerminal    = "ALREADY_TERMINAL"
	CodeStoreFailure       = "STORE_FAILURE"
	CodeProviderFailure    = "PROVIDER_FAILURE"
)

// DomainError is the structured error carried across package boundaries.
// Category drives handling (HTTP status, retry policy), Code is stable for
// programmatic matching, and Details carry contextual fields for logs.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]any
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches two domain errors by category and code, so callers can use
// errors.Is with sentinel-style targets.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Category == de.Category && (de.Code == "" || e.Code == de.Code)
}

// WithCause attaches an underlying error and returns the receiver.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail attaches a contextual field and returns the receiver.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ErrValidation builds a validation error. Validation errors are raised
// before any side effect and are never retryable.
func ErrValidation(code, format string, args ...any) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// ErrExecution builds an execution error for external process failures.
func ErrExecution(code, format string, args ...any) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: true,
	}
}

// ErrTimeout builds a timeout error.
func ErrTimeout(code, format string, args ...any) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: true,
	}
}

// ErrNotFound builds a not-found error.
func ErrNotFound(code, format string, args ...any) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// ErrState builds an invalid-state error.
func ErrState(code, format string, args ...any) *DomainError {
	return &DomainError{
		Category: ErrCatState,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// ErrInternal builds an internal error.
func ErrInternal(code, format string, args ...any) *DomainError {
	return &DomainError{
		Category: ErrCatInternal,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
	}
}

// GetCategory extracts the category from err, defaulting to internal for
// non-domain errors.
func GetCategory(err error) ErrorCategory {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Category
	}
	return ErrCatInternal
}

// IsCategory reports whether err is a DomainError of the given category.
func IsCategory(err error, cat ErrorCategory) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Category == cat
}

// IsRetryable reports whether err is a DomainError marked retryable.
func IsRetryable(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Retryable
}
