// Package apperrors provides sentinel and custom error types for the service.
package apperrors

// ErrAuth represents an authentication failure.
// Use when a bearer token is missing, unparseable, or lacks a subject.
var ErrAuth = &AuthError{}

// AuthError is a sentinel error for authentication failures.
type AuthError struct {
	Message string
}

// NewAuthError creates a new AuthError with a custom message.
func NewAuthError(message string) *AuthError {
	return &AuthError{Message: message}
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "authentication failed"
}

// Is implements the error interface for error comparison.
func (e *AuthError) Is(target error) bool {
	_, ok := target.(*AuthError)

	return ok
}

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrMalformedRecord represents a record that violates the bundle invariants
// (missing task, missing composition, or unrecognized event code).
// Fatal to one registration's dispatch step, never to the whole dispatch.
var ErrMalformedRecord = &MalformedRecordError{}

// MalformedRecordError is a sentinel error for invariant-violating records.
type MalformedRecordError struct {
	Message string
}

// NewMalformedRecordError creates a MalformedRecordError with a custom message.
func NewMalformedRecordError(message string) *MalformedRecordError {
	return &MalformedRecordError{Message: message}
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "malformed record"
}

// Is implements the error interface for error comparison.
func (e *MalformedRecordError) Is(target error) bool {
	_, ok := target.(*MalformedRecordError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}
