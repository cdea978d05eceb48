// Package domainerrors carries the error taxonomy used at service boundaries.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate them
// into coded domain errors here so transports and the session state machine can
// branch on the code without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeConfiguration marks missing or invalid boot configuration. Fatal.
	CodeConfiguration Code = "configuration"
	// CodeConflict marks an identity already owned by a different profile.
	CodeConflict Code = "conflict"
	// CodeLastEmail marks an attempt to remove the only access path to a profile.
	CodeLastEmail Code = "last_email"
	// CodeAccountDisabled marks a deactivated or no-longer-employed profile.
	CodeAccountDisabled Code = "account_disabled"
	// CodeSessionInvalid marks a missing, expired or rejected session.
	CodeSessionInvalid Code = "session_invalid"
	// CodeTransient marks a retryable backend failure.
	CodeTransient Code = "transient"
	// CodeRateLimited marks a refused attempt after too many failures.
	CodeRateLimited Code = "rate_limited"

	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeInternal     Code = "internal"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a domain error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the code of the outermost domain error in the chain, or "" when
// err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether the outermost domain error in the chain has the code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ForcesSignOut reports whether the error must tear down the local session.
// Only disabled accounts and invalid sessions qualify; everything else is
// surfaced without destroying credentials.
func ForcesSignOut(err error) bool {
	switch CodeOf(err) {
	case CodeAccountDisabled, CodeSessionInvalid:
		return true
	default:
		return false
	}
}
