// Package errors provides structured error types for the maskatlas application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library and CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - ALREADY_* / *_FROZEN / *_EXCEEDED: state-machine precondition violations
//   - STORE_*: persistence backend failures
//   - INTERNAL_*: Unexpected internal errors
//
// Precondition violations are programmer errors in this system: they are
// surfaced immediately with a descriptive message and never retried. The only
// recoverable conditions (stale or invalid persisted metadata) are reported as
// cache misses by pkg/store, not as errors.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeCapacityExceeded, "grid full: %d cells", n)
//	if errors.Is(err, errors.ErrCodeCapacityExceeded) {
//	    // Handle capacity error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStore, origErr, "write metadata %q", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeMissingOption Code = "MISSING_OPTION"
	ErrCodeInvalidFrame  Code = "INVALID_FRAME_SIZE"
	ErrCodeInvalidName   Code = "INVALID_ATLAS_NAME"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidMethod Code = "INVALID_STORE_METHOD"

	// State-machine precondition violations
	ErrCodeAlreadyCreated   Code = "ALREADY_CREATED"
	ErrCodeNotCommitted     Code = "NOT_COMMITTED"
	ErrCodeRegistryFrozen   Code = "REGISTRY_FROZEN"
	ErrCodeCapacityExceeded Code = "CAPACITY_EXCEEDED"
	ErrCodeUnknownFrame     Code = "UNKNOWN_FRAME"

	// Capture errors
	ErrCodeContentTooLarge Code = "CONTENT_TOO_LARGE"
	ErrCodeRenderer        Code = "RENDERER_ERROR"

	// Filesystem errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeReadOnlyDir  Code = "READ_ONLY_DIR"

	// Persistence errors
	ErrCodeStore Code = "STORE_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
