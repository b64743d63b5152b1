// Package domainerrors defines coded errors shared by all domain services.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing
// infrastructure facts; services translate those into coded errors that
// handlers can map to HTTP statuses without inspecting store internals.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for caller-facing handling.
type Code string

const (
	// CodeValidation covers bad input caught before any store mutation:
	// unknown gender, negative level, empty patch, missing name.
	CodeValidation Code = "validation"

	// CodeNotFound means the addressed person or edge endpoint does not exist.
	CodeNotFound Code = "not_found"

	// CodeInvalidLevel means a parent's generational level is not strictly
	// below the child's.
	CodeInvalidLevel Code = "invalid_level"

	// CodeCycle means committing the edge would create a directed cycle.
	CodeCycle Code = "cycle_detected"

	// CodeAllocation means the person id counter increment could not complete.
	CodeAllocation Code = "allocation_failed"

	// CodeTimeout means the operation's deadline expired.
	CodeTimeout Code = "timeout"

	// CodeUnavailable means the graph store could not be reached.
	CodeUnavailable Code = "unavailable"

	// CodeConflict means concurrent state prevented the operation.
	CodeConflict Code = "conflict"

	// CodeInternal is the fallback for unexpected failures. Its message is
	// never shown to callers.
	CodeInternal Code = "internal"
)

// Error carries a code, a caller-safe message, and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and caller-safe message to an underlying error.
// A nil cause returns nil so call sites can wrap unconditionally.
func Wrap(cause error, code Code, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
