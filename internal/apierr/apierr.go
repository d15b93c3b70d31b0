// Package apierr defines the behavioural error kinds the wire protocol
// distinguishes: validation, not-found, conflict, unsupported, internal.
// Scope controllers return these; the dispatcher renders them to {status,
// message} and never lets anything else escape.
package apierr

import "fmt"

// Status codes from the wire protocol (spec §6).
const (
	StatusOK           = 200
	StatusInvalid      = 400
	StatusNotFound     = 404
	StatusConflict     = 409
	StatusInternal     = 500
	StatusUnsupported  = 501
)

// Error carries a wire status code alongside a message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Invalid builds a 400 with the given message.
func Invalid(message string) *Error { return &Error{StatusInvalid, message} }

// NotFound builds a 404 with the given message.
func NotFound(message string) *Error { return &Error{StatusNotFound, message} }

// Conflict builds a 409 with the given message.
func Conflict(message string) *Error { return &Error{StatusConflict, message} }

// Unsupported builds a 501 with the given message.
func Unsupported(message string) *Error { return &Error{StatusUnsupported, message} }

// Internal builds a 500 wrapping the underlying error's message.
func Internal(err error) *Error { return &Error{StatusInternal, err.Error()} }

// AsAPIError unwraps err into an *Error, defaulting to the canonical 500
// message when err is not already one (matching the "no exception ever
// escapes the dispatcher" propagation policy).
func AsAPIError(err error) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*Error); ok {
		return apiErr
	}
	return &Error{StatusInternal, "An internal error occurred"}
}
