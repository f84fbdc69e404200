// Package errors provides coded errors shared by the mallows libraries, the
// CLI and the HTTP API.
//
// Every failure a caller may act on carries a [Code]. Codes group by prefix:
// INVALID_* for rejected input (configurations, permutations, instances),
// *NOT_FOUND for missing instances and runs, NETWORK_ERROR and TIMEOUT for
// downloads, INTERNAL_ERROR for everything else. The API maps codes to HTTP
// statuses with [HTTPStatus].
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "offspring_size+1 (%d) != population_size (%d)", o+1, p)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    ...
//	}
//
// [Wrap] keeps the cause, so the standard library's errors.Is and errors.As
// still see through a coded error.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidConfig      Code = "INVALID_CONFIG"
	ErrCodeInvalidPermutation Code = "INVALID_PERMUTATION"
	ErrCodeInvalidModel       Code = "INVALID_MODEL"
	ErrCodeInvalidSelection   Code = "INVALID_SELECTION"
	ErrCodeInvalidProblem     Code = "INVALID_PROBLEM"
	ErrCodeInvalidFormat      Code = "INVALID_FORMAT"

	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeRunNotFound  Code = "RUN_NOT_FOUND"

	// A stored run no longer matches the instance available for it.
	ErrCodeInstanceMismatch    Code = "INSTANCE_MISMATCH"
	ErrCodeInstanceUnavailable Code = "INSTANCE_UNAVAILABLE"

	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is an error with a code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with a formatted message around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any coded error in err's chain has code. A run that
// failed because its instance file is missing is both INTERNAL_ERROR and
// FILE_NOT_FOUND when wrapped that way.
func Is(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode returns the code of the outermost coded error in err's chain, or ""
// if there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message of the outermost coded error without its
// code prefix, or err.Error() for uncoded errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps the code of err to the status the API answers with.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeInvalidPermutation,
		ErrCodeInvalidModel, ErrCodeInvalidSelection, ErrCodeInvalidProblem,
		ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeFileNotFound, ErrCodeRunNotFound:
		return http.StatusNotFound
	case ErrCodeInstanceMismatch, ErrCodeInstanceUnavailable:
		return http.StatusConflict
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
