// Package domainerrors defines the tagged error type shared by every layer of
// the service. Each error carries a stable machine-readable code so transport
// layers can map failures to HTTP statuses without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category. Codes are part of the API contract:
// handlers serialize them verbatim into error envelopes.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_failed"
	CodeMissingField Code = "missing_required_field"
	// CodeConflict covers mismatched identity resolution (two identifiers
	// pointing at different subjects). It maps to 400, not 409: the caller
	// supplied contradictory input rather than racing another writer.
	CodeConflict     Code = "conflict"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeTimeout      Code = "timeout"
	// CodeDependency marks an auto-create step that returned no record.
	// Treated as a transient upstream problem; retry policy belongs to the caller.
	CodeDependency Code = "dependency_failure"
	CodeInternal   Code = "internal_error"
)

var httpStatus = map[Code]int{
	CodeBadRequest:   http.StatusBadRequest,
	CodeValidation:   http.StatusBadRequest,
	CodeMissingField: http.StatusBadRequest,
	CodeConflict:     http.StatusBadRequest,
	CodeNotFound:     http.StatusNotFound,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeTimeout:      http.StatusRequestTimeout,
	CodeDependency:   http.StatusServiceUnavailable,
	CodeInternal:     http.StatusInternalServerError,
}

// HTTPStatus maps a code to its response status. Unknown codes fall back to 500.
func (c Code) HTTPStatus() int {
	if status, ok := httpStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the tagged error carried across layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a tagged error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given code.
func Is(err error, code Code) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for untagged errors.
func CodeOf(err error) Code {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Code
	}
	return CodeInternal
}

// MessageOf extracts the human-readable message from an error chain.
func MessageOf(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Message
	}
	return "internal error"
}
