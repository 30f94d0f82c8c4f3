// Package dto defines API request/response types and error handling.
//
// Request types carry path/query/json struct tags for parameter binding and
// implement Validate; response types use string IDs and RFC3339 timestamps.
// Error handling follows a structured pattern: ErrorCode gives a
// machine-readable classification, APIError wraps errors with HTTP status
// codes and details, and constructor functions create the common cases.
package dto

import (
	"fmt"
	"maps"
	"net/http"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidFormat is returned when a field has an invalid format.
	ErrorCodeInvalidFormat ErrorCode = "INVALID_FORMAT"

	// ErrorCodeNotFound is returned when a record, content key, or named
	// array is not found.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeTypeMismatch is returned when a requested view does not match
	// the stored content type.
	ErrorCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"
	// ErrorCodeOutOfRange is returned for a position past the result set.
	ErrorCodeOutOfRange ErrorCode = "OUT_OF_RANGE"
	// ErrorCodeBadRange is returned for an unsatisfiable byte range.
	ErrorCodeBadRange ErrorCode = "BAD_RANGE"

	// ErrorCodeStorageError is returned when a storage operation fails.
	ErrorCodeStorageError ErrorCode = "STORAGE_ERROR"
	// ErrorCodeInternal is returned when an unexpected server error occurs.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetails defines the structured error information in a response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// WithDetails adds details to the error.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Unwrap supports errors.Is/As on the wrapped error.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns the error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// NotFound creates a 404 error for a missing resource.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest creates a 400 error with a human-readable reason.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField creates a 400 error for a missing required field.
func MissingField(field string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, fmt.Sprintf("missing required field: %s", field)).
		WithDetail("field", field)
}

// InvalidFormat creates a 400 error for a malformed field value.
func InvalidFormat(field, reason string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeInvalidFormat, fmt.Sprintf("invalid %s: %s", field, reason)).
		WithDetail("field", field)
}

// TypeMismatch creates a 400 error for a view that does not match the
// stored content type.
func TypeMismatch(view, stored string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeTypeMismatch,
		fmt.Sprintf("content is not viewable as %s (stored content-type %s)", view, stored)).
		WithDetail("content-type", stored)
}

// OutOfRange creates a 400 error for a position past the result set.
func OutOfRange(position, count int) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeOutOfRange, fmt.Sprintf("index out of range: %d", position)).
		WithDetail("count", count)
}

// BadRange creates a 400 error for an unsatisfiable byte range.
func BadRange(spec string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeBadRange, fmt.Sprintf("unsatisfiable range: %s", spec))
}

// Storage creates a 500 error for a failed storage operation.
func Storage(op string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeStorageError, fmt.Sprintf("storage operation failed: %s", op))
}

// Internal creates a 500 error for an unexpected failure.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}
