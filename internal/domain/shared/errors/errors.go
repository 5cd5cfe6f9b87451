// Package errors defines the structured error type used by tool handlers.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorType defines the type of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates a tool, prompt, asset or scene state was not found
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInvalidInput indicates invalid input parameters
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	// ErrorTypeUnavailable indicates that no viewer is attached
	ErrorTypeUnavailable ErrorType = "unavailable"
	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "internal"
)

// MCPError represents an error in the MCP protocol
type MCPError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error returns the error message
func (e *MCPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *MCPError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *MCPError {
	return &MCPError{Type: ErrorTypeNotFound, Message: message, Cause: cause}
}

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message string, cause error) *MCPError {
	return &MCPError{Type: ErrorTypeInvalidInput, Message: message, Cause: cause}
}

// NewUnavailableError creates a new unavailable error
func NewUnavailableError(message string, cause error) *MCPError {
	return &MCPError{Type: ErrorTypeUnavailable, Message: message, Cause: cause}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *MCPError {
	return &MCPError{Type: ErrorTypeInternal, Message: message, Cause: cause}
}

// Wrap wraps an error with additional context. MCP errors keep their type,
// anything else becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return &MCPError{
			Type:    mcpErr.Type,
			Message: fmt.Sprintf("%s: %s", message, mcpErr.Message),
			Cause:   mcpErr.Cause,
		}
	}

	return &MCPError{
		Type:    ErrorTypeInternal,
		Message: message,
		Cause:   err,
	}
}

// TypeOf returns the error type of err, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr.Type
	}
	return ErrorTypeInternal
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeNotFound
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeInvalidInput
}

// IsUnavailable checks if an error is an unavailable error
func IsUnavailable(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeUnavailable
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeInternal
}
