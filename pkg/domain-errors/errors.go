// Package domainerrors carries coded domain errors across layers.
//
// Services and domain constructors return *Error values tagged with a Code.
// Transport adapters translate codes into status codes with HTTPStatus;
// infrastructure layers return pkg/platform/sentinel errors instead, which
// services wrap with a code.
//
// Import as:
//
//	dErrors "tenantcore/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"

	// CodeInvalidIdentityFormat: identity value empty or not a UUIDv4.
	CodeInvalidIdentityFormat Code = "invalid_identity_format"
	// CodeInvalidIsolationContext: a populated scope field holds an invalid identity.
	CodeInvalidIsolationContext Code = "invalid_isolation_context"
	// CodeSnapshotSerialization: an aggregate cannot produce or consume its state blob.
	CodeSnapshotSerialization Code = "snapshot_serialization_error"
	// CodeAccessDenied: the access decision refused the caller.
	CodeAccessDenied Code = "access_denied"
	// CodeVersionConflict: optimistic concurrency check failed; retryable.
	CodeVersionConflict Code = "version_conflict"
)

// Error is a coded domain error. Err is the optional underlying cause.
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

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
// Wrapping a nil error returns nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is is errors.Is, re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsRetryable reports whether the caller may retry the operation unchanged
// after reloading state.
func IsRetryable(err error) bool {
	return HasCode(err, CodeVersionConflict)
}

// HTTPStatus maps a code to the status an HTTP adapter should return.
// Input-format failures are 4xx; internal inconsistencies such as snapshot
// corruption are 5xx.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeValidation,
		CodeInvalidIdentityFormat, CodeInvalidIsolationContext:
		return http.StatusBadRequest
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeVersionConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
