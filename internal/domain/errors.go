package domain

import "fmt"

// Common domain errors
var (
	ErrNoViewer      = NewError("no client connection available", 503)
	ErrNoSceneState  = NewError("no scene state available", 404)
	ErrSendQueueFull = NewError("viewer send queue is full", 503)
	ErrInvalidInput  = NewError("invalid input", 400)
)

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// AssetNotFoundError indicates that a model file does not exist on disk.
type AssetNotFoundError struct {
	Path string
	Err  *Error
}

// Error returns the error message.
func (e *AssetNotFoundError) Error() string {
	return e.Err.Error()
}

// NewAssetNotFoundError creates a new AssetNotFoundError.
func NewAssetNotFoundError(path string) *AssetNotFoundError {
	return &AssetNotFoundError{
		Path: path,
		Err: NewError(
			fmt.Sprintf("GLB file not found: %s", path),
			404,
		),
	}
}

// ValidationError indicates that input validation failed.
type ValidationError struct {
	Field   string
	Message string
	Err     *Error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return e.Err.Error()
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err: NewError(
			fmt.Sprintf("%s: %s", field, message),
			400,
		),
	}
}
