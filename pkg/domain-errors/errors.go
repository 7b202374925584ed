// Package derrors provides coded domain errors. Services construct these at
// the point a rule of the domain is violated; handlers map codes to HTTP
// status without string matching.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	// CodeInvalidInput: input failed validation at a trust boundary
	// (negative money amount, NaN ratio, unparseable ID).
	CodeInvalidInput Code = "invalid_input"

	// CodeMissingInput: a required input for the requested operation is
	// absent (e.g. ARV missing when the investment rule is requested).
	CodeMissingInput Code = "missing_input"

	// CodePreconditionNotMet: the entity is not in a state that permits
	// the requested operation (unlisted stage transition).
	CodePreconditionNotMet Code = "precondition_not_met"

	// CodeConflict: concurrent modification detected; the caller should
	// re-read and retry.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation: an internal invariant was broken; indicates
	// a bug rather than bad input.
	CodeInvariantViolation Code = "invariant_violation"

	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is a domain error carrying a Code. It wraps an underlying cause
// when constructed via Wrap.
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

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the cause
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when
// err carries no domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is delegates to errors.Is so callers can keep a single import.
func Is(err, target error) bool { return errors.Is(err, target) }
