// Package apperror defines the error taxonomy shared by services and the HTTP
// layer.  Services return *AppError values; the echo error handler turns them
// into response envelopes.  Anything that is not an *AppError is treated as an
// internal failure.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a domain error with a client-facing message and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

const (
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeTooManyRequests = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
)

func newErr(code string, status int, msg string, cause error) *AppError {
	return &AppError{Code: code, Message: msg, HTTPStatus: status, Cause: cause}
}

func NotFound(msg string) *AppError { return newErr(CodeNotFound, http.StatusNotFound, msg, nil) }

func Conflict(msg string) *AppError { return newErr(CodeConflict, http.StatusConflict, msg, nil) }

func BadRequest(msg string) *AppError { return newErr(CodeBadRequest, http.StatusBadRequest, msg, nil) }

func Unauthorized(msg string) *AppError {
	return newErr(CodeUnauthorized, http.StatusUnauthorized, msg, nil)
}

func Forbidden(msg string) *AppError { return newErr(CodeForbidden, http.StatusForbidden, msg, nil) }

func TooManyRequests(msg string) *AppError {
	return newErr(CodeTooManyRequests, http.StatusTooManyRequests, msg, nil)
}

// Internal wraps an infrastructure failure.  The message is what clients see;
// the cause is only logged.
func Internal(msg string, cause error) *AppError {
	return newErr(CodeInternal, http.StatusInternalServerError, msg, cause)
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// StatusOf returns the HTTP status for err, 500 for foreign errors.
func StatusOf(err error) int {
	if ae, ok := As(err); ok {
		return ae.HTTPStatus
	}
	return http.StatusInternalServerError
}
