package store

import (
	"errors"
	"fmt"
)

// Code categorizes engine failures.
type Code string

const (
	// CodeNotFound indicates a referenced node, edge, version, methodology,
	// or proposal does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodePermissionDenied indicates a direct mutation was attempted against
	// a released version.
	CodePermissionDenied Code = "PERMISSION_DENIED"

	// CodeValidationFailed indicates a structurally invalid mutation: a
	// cycle-introducing dependency edge, a malformed attribute payload, or an
	// illegal state transition.
	CodeValidationFailed Code = "VALIDATION_FAILED"

	// CodeConflict indicates a concurrent transaction collision on the same
	// version.
	CodeConflict Code = "CONFLICT_DETECTED"

	// CodeAuxiliary indicates a non-critical side operation failed. Errors
	// with this code are logged at the boundary and never propagated to the
	// caller of the primary operation.
	CodeAuxiliary Code = "AUXILIARY_FAILURE"
)

// Error is a structured engine error. All failures that cross a component
// boundary carry one so callers can classify without string matching.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Entity names the record family involved ("node", "edge", "version",
	// "methodology", "proposal"), when known.
	Entity string

	// ID identifies the record involved, when known.
	ID string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Entity != "" && e.ID != "":
		return fmt.Sprintf("%s: %s (%s %s)", e.Code, e.Message, e.Entity, e.ID)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Entity)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound constructs a NotFound error for the given record.
func NotFound(entity, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: "record does not exist",
		Entity:  entity,
		ID:      id,
	}
}

// PermissionDenied constructs a PermissionDenied error.
func PermissionDenied(message, versionID string) *Error {
	return &Error{
		Code:    CodePermissionDenied,
		Message: message,
		Entity:  "version",
		ID:      versionID,
	}
}

// ValidationFailed constructs a ValidationFailed error.
func ValidationFailed(message string) *Error {
	return &Error{Code: CodeValidationFailed, Message: message}
}

// ValidationFailedf constructs a ValidationFailed error with formatting.
func ValidationFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// Conflict constructs a ConflictDetected error for a version.
func Conflict(versionID string, cause error) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: "concurrent transaction collision",
		Entity:  "version",
		ID:      versionID,
		Err:     cause,
	}
}

// Auxiliary wraps a non-critical side-operation failure.
func Auxiliary(operation string, cause error) *Error {
	return &Error{
		Code:    CodeAuxiliary,
		Message: operation + " failed",
		Err:     cause,
	}
}

// codeOf extracts the Code from err, or "" if err carries none.
func codeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return codeOf(err) == CodeNotFound }

// IsPermissionDenied reports whether err is a PermissionDenied error.
func IsPermissionDenied(err error) bool { return codeOf(err) == CodePermissionDenied }

// IsValidationFailed reports whether err is a ValidationFailed error.
func IsValidationFailed(err error) bool { return codeOf(err) == CodeValidationFailed }

// IsConflict reports whether err is a ConflictDetected error.
func IsConflict(err error) bool { return codeOf(err) == CodeConflict }

// IsAuxiliary reports whether err is an AuxiliaryFailure.
func IsAuxiliary(err error) bool { return codeOf(err) == CodeAuxiliary }
