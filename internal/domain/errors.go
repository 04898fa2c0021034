// Package domain provides the session model and the canonical error types
// shared by every layer of the diagnosis service.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a service error.
type ErrorKind string

const (
	// ErrorKindSessionNotFound indicates the session id is unknown.
	ErrorKindSessionNotFound ErrorKind = "session_not_found"

	// ErrorKindInvalidState indicates an illegal transition or guard violation.
	ErrorKindInvalidState ErrorKind = "invalid_state"

	// ErrorKindValidation indicates malformed input or malformed provider output.
	ErrorKindValidation ErrorKind = "validation_error"

	// ErrorKindRateLimited indicates a provider throttled the request.
	ErrorKindRateLimited ErrorKind = "rate_limited"

	// ErrorKindUnavailable indicates a provider timeout or connection failure.
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindAccount indicates an authentication or billing failure.
	ErrorKindAccount ErrorKind = "account_error"

	// ErrorKindAllProvidersFailed indicates the whole provider chain was exhausted.
	ErrorKindAllProvidersFailed ErrorKind = "all_providers_failed"

	// ErrorKindIncompleteChoices indicates scoring was requested before all choices were made.
	ErrorKindIncompleteChoices ErrorKind = "incomplete_choices"

	// ErrorKindDegenerateScores indicates every raw axis score came out as zero.
	ErrorKindDegenerateScores ErrorKind = "degenerate_scores"
)

// IsProviderKind reports whether the kind is raised by a provider and absorbed
// by the orchestrator rather than surfaced to callers.
func (k ErrorKind) IsProviderKind() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindUnavailable, ErrorKindAccount, ErrorKindValidation:
		return true
	}
	return false
}

// Error is the canonical error carried through the service.
type Error struct {
	// Kind is the category of error
	Kind ErrorKind `json:"type"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Provider names the backend that produced the error (if any)
	Provider string `json:"-"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindSessionNotFound:
		return http.StatusNotFound
	case ErrorKindInvalidState:
		return http.StatusConflict
	case ErrorKindValidation, ErrorKindIncompleteChoices, ErrorKindDegenerateScores:
		return http.StatusUnprocessableEntity
	case ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case ErrorKindUnavailable, ErrorKindAllProvidersFailed:
		return http.StatusServiceUnavailable
	case ErrorKindAccount:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new service error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// WithProvider records the provider that produced the error.
func (e *Error) WithProvider(name string) *Error {
	e.Provider = name
	return e
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// KindOf returns the kind of err, or "" when err is not a *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Convenience constructors for common errors

// ErrSessionNotFound creates a session-not-found error.
func ErrSessionNotFound(id string) *Error {
	return NewError(ErrorKindSessionNotFound, fmt.Sprintf("session %s not found", id))
}

// ErrInvalidState creates an invalid-state error.
func ErrInvalidState(format string, args ...any) *Error {
	return NewError(ErrorKindInvalidState, fmt.Sprintf(format, args...))
}

// ErrValidation creates a validation error.
func ErrValidation(format string, args ...any) *Error {
	return NewError(ErrorKindValidation, fmt.Sprintf(format, args...))
}

// ErrRateLimited creates a rate limit error.
func ErrRateLimited(message string) *Error {
	return NewError(ErrorKindRateLimited, message)
}

// ErrUnavailable creates an unavailable error.
func ErrUnavailable(message string) *Error {
	return NewError(ErrorKindUnavailable, message)
}

// ErrAccount creates an authentication/billing error.
func ErrAccount(message string) *Error {
	return NewError(ErrorKindAccount, message)
}

// ErrAllProvidersFailed creates a chain exhaustion error for an operation.
func ErrAllProvidersFailed(op Operation, attempts int) *Error {
	return NewError(ErrorKindAllProvidersFailed,
		fmt.Sprintf("all providers failed for %s after %d attempts", op, attempts))
}

// ErrIncompleteChoices creates an incomplete-choices error.
func ErrIncompleteChoices(have, want int) *Error {
	return NewError(ErrorKindIncompleteChoices,
		fmt.Sprintf("%d of %d choices recorded", have, want))
}

// ErrDegenerateScores creates a degenerate-scores error.
func ErrDegenerateScores() *Error {
	return NewError(ErrorKindDegenerateScores, "all raw axis scores are zero")
}
