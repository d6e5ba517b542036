package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Definition error codes. These indicate a malformed graph or registry
// misuse and are never expected at steady state.
const (
	ErrDuplicateWorkflow  ErrorCode = "WORKFLOW_DUPLICATE"
	ErrUnknownWorkflow    ErrorCode = "WORKFLOW_UNKNOWN"
	ErrUnknownStep        ErrorCode = "STEP_UNKNOWN"
	ErrUnroutableDecision ErrorCode = "DECISION_UNROUTABLE"
	ErrInvalidGraph       ErrorCode = "GRAPH_INVALID"
	ErrStepBudgetExceeded ErrorCode = "STEP_BUDGET_EXCEEDED"
)

// Capability fault codes. Expected occasionally; recorded on the run state
// rather than escaping the engine.
const (
	ErrCompletionUnavailable ErrorCode = "COMPLETION_UNAVAILABLE"
	ErrQueryFailed           ErrorCode = "QUERY_FAILED"
	ErrRateLimited           ErrorCode = "RATE_LIMITED"
	ErrInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrTimeout               ErrorCode = "TIMEOUT"
)

// Storage error codes.
const (
	ErrSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Provider  string    `json:"provider,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsDefinitionError reports whether err carries one of the workflow
// definition error codes. Definition errors propagate to the caller of
// Run/Register; everything else is recorded on the run state.
func IsDefinitionError(err error) bool {
	switch GetErrorCode(err) {
	case ErrDuplicateWorkflow, ErrUnknownWorkflow, ErrUnknownStep,
		ErrUnroutableDecision, ErrInvalidGraph, ErrStepBudgetExceeded:
		return true
	}
	return false
}
