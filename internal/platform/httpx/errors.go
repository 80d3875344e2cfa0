// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Transport-level error classes. Domain packages wrap their own errors with
// one of these so RespondError can pick the status.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnavailable  = errors.New("temporarily unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// CodedError attaches a machine readable code to a classified error.
type CodedError struct {
	Class error
	Code  string
	Err   error
}

func (e *CodedError) Error() string { return e.Err.Error() }

// Unwrap exposes both the class and the cause to errors.Is.
func (e *CodedError) Unwrap() []error { return []error{e.Class, e.Err} }

// Classify wraps err with a transport class and code.
func Classify(class error, code string, err error) error {
	return &CodedError{Class: class, Code: code, Err: err}
}

// RespondError maps classified errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var code string
	var coded *CodedError
	if errors.As(err, &coded) {
		code = coded.Code
	}
	switch {
	case errors.Is(err, ErrValidation):
		problem(w, http.StatusBadRequest, "Validation Failed", code, err.Error())
	case errors.Is(err, ErrUnauthorized):
		problem(w, http.StatusUnauthorized, "Unauthorized", code, err.Error())
	case errors.Is(err, ErrNotFound):
		problem(w, http.StatusNotFound, "Not Found", code, err.Error())
	case errors.Is(err, ErrConflict):
		problem(w, http.StatusConflict, "Conflict", code, err.Error())
	case errors.Is(err, ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		problem(w, http.StatusServiceUnavailable, "Service Unavailable", code, err.Error())
	default:
		problem(w, http.StatusInternalServerError, "Internal Error", code, "")
	}
}
