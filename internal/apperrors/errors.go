// Package apperrors defines the error taxonomy shared across the engine.
package apperrors

import (
	"errors"
	"fmt"
)

// Code identifies an error category. Callers branch on codes, never on
// message text.
type Code string

const (
	CodeConfiguration          Code = "CONFIGURATION_ERROR"
	CodeEvaluationUnavailable  Code = "EVALUATION_UNAVAILABLE"
	CodeEvaluationTimeout      Code = "EVALUATION_TIMEOUT"
	CodeNoEligibleQuestions    Code = "NO_ELIGIBLE_QUESTIONS"
	CodeInvalidState           Code = "INVALID_STATE"
	CodeSessionBusy            Code = "SESSION_BUSY"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeNotFound               Code = "NOT_FOUND"
)

// Error is a structured application error.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the taxonomy code from err, or "" for plain errors.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// NewConfiguration marks invalid or missing configuration data (e.g. a
// malformed rubric). Not retryable; must be fixed upstream.
func NewConfiguration(msg string) *Error {
	return &Error{Code: CodeConfiguration, Message: msg}
}

// NewEvaluationUnavailable wraps a failure of both the primary matcher and
// the fallback.
func NewEvaluationUnavailable(err error) *Error {
	return &Error{Code: CodeEvaluationUnavailable, Message: "evaluation capability unavailable", Retryable: true, cause: err}
}

// NewEvaluationTimeout wraps an evaluation that exceeded its deadline.
func NewEvaluationTimeout(err error) *Error {
	return &Error{Code: CodeEvaluationTimeout, Message: "evaluation timed out", Retryable: true, cause: err}
}

// NewNoEligibleQuestions signals an empty candidate set after filtering.
// The session state machine maps this to a natural session end.
func NewNoEligibleQuestions(msg string) *Error {
	return &Error{Code: CodeNoEligibleQuestions, Message: msg}
}

// NewInvalidState marks an operation attempted on a terminal or mismatched
// session state.
func NewInvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

// NewSessionBusy signals a second concurrent cycle on the same session.
func NewSessionBusy(sessionID string) *Error {
	return &Error{Code: CodeSessionBusy, Message: "session " + sessionID + " has a cycle in flight", Retryable: true}
}

// NewConcurrentModification signals an optimistic-version mismatch on the
// session store. The whole cycle should be retried, never merged.
func NewConcurrentModification(sessionID string) *Error {
	return &Error{Code: CodeConcurrentModification, Message: "session " + sessionID + " was modified concurrently", Retryable: true}
}

// NewNotFound marks an unknown entity reference.
func NewNotFound(kind, id string) *Error {
	return &Error{Code: CodeNotFound, Message: kind + " " + id + " not found"}
}
