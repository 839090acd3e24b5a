// Package errors provides the coded error taxonomy shared by the transcoder.
//
// Usage:
//
//	// In the pipeline - return typed errors
//	if len(tracks) == 0 {
//	    return errors.Decodef("%s: no audio track", path)
//	}
//
//	// At the file boundary - classify with errors.Is
//	if errors.Is(err, errors.ErrDecode) {
//	    msg = "Failed to decode " + rel
//	}
//
//	// In handlers - map the code to a status
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    status := domainErr.HTTPStatus()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	// CodeIO covers unreadable roots or files and unwritable destinations.
	CodeIO Code = "IO_ERROR"
	// CodeDecode covers missing tracks, unsupported sample layouts and corrupt streams.
	CodeDecode Code = "DECODE_ERROR"
	// CodeEncode covers missing channels and encoder configuration, tagging, encode or flush rejections.
	CodeEncode Code = "ENCODE_ERROR"
	// CodeConfig covers unsupported job settings such as a reserved target format.
	CodeConfig Code = "CONFIG_ERROR"

	CodeNotFound   Code = "NOT_FOUND"
	CodeValidation Code = "VALIDATION"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeConfig:
		return http.StatusBadRequest
	case CodeIO:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrIO         = &Error{Code: CodeIO, Message: "i/o error"}
	ErrDecode     = &Error{Code: CodeDecode, Message: "decode error"}
	ErrEncode     = &Error{Code: CodeEncode, Message: "encode error"}
	ErrConfig     = &Error{Code: CodeConfig, Message: "configuration error"}
	ErrNotFound   = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict   = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal   = &Error{Code: CodeInternal, Message: "internal error"}
)

// IO wraps err as an i/o error.
func IO(err error, msg string) *Error {
	return &Error{Code: CodeIO, Message: msg, cause: err}
}

// IOf wraps err as an i/o error with a formatted message.
func IOf(err error, format string, args ...any) *Error {
	return &Error{Code: CodeIO, Message: fmt.Sprintf(format, args...), cause: err}
}

// Decode creates a decode error.
func Decode(msg string) *Error {
	return &Error{Code: CodeDecode, Message: msg}
}

// Decodef creates a decode error with formatted message.
func Decodef(format string, args ...any) *Error {
	return &Error{Code: CodeDecode, Message: fmt.Sprintf(format, args...)}
}

// Encode creates an encode error.
func Encode(msg string) *Error {
	return &Error{Code: CodeEncode, Message: msg}
}

// Encodef creates an encode error with formatted message.
func Encodef(format string, args ...any) *Error {
	return &Error{Code: CodeEncode, Message: fmt.Sprintf(format, args...)}
}

// Configf creates a configuration error with formatted message.
func Configf(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
