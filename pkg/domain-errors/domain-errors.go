// Package domainerrors carries the error codes the broker, the authorizer
// records and the operator endpoints agree on. httputil maps them to HTTP.
package domainerrors

import "errors"

// Code names a failure in credential terms, not HTTP terms.
type Code string

const (
	// CodeNotFound: no authorizer record for the appid.
	CodeNotFound Code = "not_found"
	// CodeBadRequest: a malformed path parameter or query.
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput: a request body or argument failed validation.
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal_error"
	// CodeUnauthorized: a relayed notification without the shared events token.
	CodeUnauthorized Code = "unauthorized"
	// CodeInvariantViolation: an authorizer record that would break its own rules,
	// such as an active grant without a refresh token.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks a credential or platform call that could not be
	// completed right now. Callers may retry later.
	CodeUnavailable Code = "unavailable"
)

// Error pairs a Code with a message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
