// Package modelrterrs implements the runtime's error taxonomy: a small,
// closed set of error kinds with a single retryability predicate, so
// callers can branch on "what went wrong" without string-matching.
package modelrterrs

import (
	"errors"
	"fmt"
)

// Kind is the closed set of error categories a runtime operation can fail
// with.
type Kind string

// Kind constants.
const (
	KindConfig             Kind = "config"
	KindProviderNotFound    Kind = "provider_not_found"
	KindCapabilityMismatch Kind = "capability_mismatch"
	KindLoad               Kind = "load"
	KindAPIError           Kind = "api_error"
	KindInference          Kind = "inference_error"
	KindRateLimited        Kind = "rate_limited"
	KindUnauthorized       Kind = "unauthorized"
	KindTimeout            Kind = "timeout"
	KindUnavailable        Kind = "unavailable"
)

// Error is the runtime's single error type: a Kind plus a human-readable
// message and optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, returning ("", false) if err is not (or
// does not wrap) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err represents a transient condition worth
// retrying: RateLimited, Timeout, and Unavailable. All other kinds
// (including generic, non-*Error errors) are treated as non-retryable.
func IsRetryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindRateLimited, KindTimeout, KindUnavailable:
		return true
	default:
		return false
	}
}
