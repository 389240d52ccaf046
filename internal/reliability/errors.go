// Package reliability implements the retry/backoff, circuit-breaker and
// error-taxonomy fabric (SPEC_FULL.md component I) that every external
// collaborator (embedding endpoint, LLM provider, vector store, Confluence)
// is called through.
package reliability

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the nine error kinds in the taxonomy.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimit   Kind = "rate_limit"
	KindTimeout     Kind = "timeout"
	KindUpstream    Kind = "upstream"
	KindCircuitOpen Kind = "circuit_open"
	KindInternal    Kind = "internal"
	KindUnavailable Kind = "unavailable"
)

// Error is the taxonomy-carrying error type every component wraps upstream
// failures in before returning them to the HTTP surface.
type Error struct {
	Kind      Kind
	Status    int
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// statusFor maps a Kind to its default HTTP status.
func statusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstream:
		return http.StatusBadGateway
	case KindCircuitOpen:
		return http.StatusServiceUnavailable
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// retryableFor reports whether a Kind is retried by withRetry by default.
func retryableFor(k Kind) bool {
	switch k {
	case KindTimeout, KindUpstream, KindUnavailable, KindRateLimit:
		return true
	default:
		return false
	}
}

// New builds a taxonomy Error of the given kind wrapping err.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Message: message, Retryable: retryableFor(kind), Err: err}
}

// Validation builds a non-retryable KindValidation error.
func Validation(message string) *Error { return New(KindValidation, message, nil) }

// NotFound builds a non-retryable KindNotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

// Conflict builds a non-retryable KindConflict error.
func Conflict(message string) *Error { return New(KindConflict, message, nil) }

// CircuitOpen builds the error a breaker returns while open.
func CircuitOpen(name string) *Error {
	return New(KindCircuitOpen, fmt.Sprintf("circuit %q is open", name), nil)
}

// AsError unwraps err into a *Error if possible.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err should be retried by withRetry. Errors not
// wrapped in the taxonomy are treated as non-retryable, since only
// components that understand the failure classify it as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// StatusCode returns the HTTP status the taxonomy maps err to, defaulting to
// 500 for errors outside the taxonomy.
func StatusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
