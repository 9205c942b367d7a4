package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeInternal   ErrorType = "INTERNAL"
	ErrorTypeUpstream   ErrorType = "UPSTREAM"
	ErrorTypeTooLarge   ErrorType = "TOO_LARGE"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

// TooLarge rejects a request body over limit bytes.
func TooLarge(limit int64) *Error {
	return &Error{
		Type:    ErrorTypeTooLarge,
		Message: fmt.Sprintf("request body exceeds %d bytes", limit),
		Code:    http.StatusRequestEntityTooLarge,
	}
}

func Internal(message string) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// Upstream reports a non-2xx answer or transport failure from the review
// backend. status is 0 when no response was received.
func Upstream(status int, body string) *Error {
	msg := "backend unreachable"
	if status != 0 {
		msg = fmt.Sprintf("backend returned %d %s", status, http.StatusText(status))
	}
	return &Error{
		Type:    ErrorTypeUpstream,
		Message: msg,
		Code:    http.StatusBadGateway,
		Details: map[string]any{"status": status, "body": body},
	}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries an *Error of the given type.
func Is(err error, t ErrorType) bool {
	e, ok := As(err)
	return ok && e.Type == t
}

// Transient reports whether err is an upstream failure worth retrying or
// falling back from: no response at all, or a 5xx answer.
func Transient(err error) bool {
	e, ok := As(err)
	if !ok || e.Type != ErrorTypeUpstream {
		return false
	}
	details, _ := e.Details.(map[string]any)
	status, _ := details["status"].(int)
	return status == 0 || status >= 500
}
