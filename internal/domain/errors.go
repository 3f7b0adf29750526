// Package domain provides canonical chat types and error types for the proxy.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	// ErrorTypeValidation indicates malformed or out-of-range input.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeProvider indicates the upstream model call failed.
	ErrorTypeProvider ErrorType = "provider"

	// ErrorTypeInternal indicates anything else.
	ErrorTypeInternal ErrorType = "internal"
)

// APIError is the canonical error returned by every component. Frontdoors
// translate it to an HTTP body or a terminal stream frame.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Details carries per-field validation failures
	Details []FieldError `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// FieldError describes a single invalid field.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithCause records the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// WithDetails attaches per-field validation failures.
func (e *APIError) WithDetails(details []FieldError) *APIError {
	e.Details = details
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(message string) *APIError {
	return NewAPIError(ErrorTypeValidation, message)
}

// ErrProvider wraps an upstream failure. The message keeps the provider
// prefix so clients can tell where the failure came from.
func ErrProvider(provider string, cause error) *APIError {
	return NewAPIError(ErrorTypeProvider, fmt.Sprintf("%s API error: %v", provider, cause)).
		WithCause(cause)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *APIError {
	return NewAPIError(ErrorTypeInternal, message)
}

// AsAPIError classifies err. Errors that are not already an *APIError are
// reported as internal errors.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal(err.Error()).WithCause(err)
}

// IsType reports whether err is an *APIError of the given type.
func IsType(err error, t ErrorType) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Type == t
}
