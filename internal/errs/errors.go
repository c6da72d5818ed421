// Package errs holds the coded error type shared by the services and the
// HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	EInternal     = "internal error"
	ENotFound     = "not found"
	EConflict     = "conflict"
	EInvalid      = "invalid"
	EUnauthorized = "unauthorized"
	EForbidden    = "forbidden"
	EUnavailable  = "unavailable"
)

// Error is a domain error with a code that the transport maps to a status.
//
// Msg is shown to API callers. Err is the wrapped cause and is only logged.
type Error struct {
	Code string
	Msg  string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error with the given code and message.
func New(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf is New with a format string.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err.
func Wrap(err error, code, msg string) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Code returns the code of the first *Error in err's chain, or EInternal
// for uncoded errors.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return EInternal
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return Code(e.Err)
	}
	return EInternal
}

// Message returns the caller-visible message for err. Uncoded and internal
// errors collapse to a generic message so no internal detail leaks.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || Code(err) == EInternal {
		return "internal server error"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Code
}

var statusCodes = map[string]int{
	EInternal:     http.StatusInternalServerError,
	ENotFound:     http.StatusNotFound,
	EConflict:     http.StatusConflict,
	EInvalid:      http.StatusBadRequest,
	EUnauthorized: http.StatusUnauthorized,
	EForbidden:    http.StatusForbidden,
	EUnavailable:  http.StatusBadGateway,
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	if s, ok := statusCodes[Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// IsNotFound reports whether err carries ENotFound.
func IsNotFound(err error) bool {
	return Code(err) == ENotFound
}
