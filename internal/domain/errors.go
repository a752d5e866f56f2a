package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures and annotations returned by the planner
type ErrorCode string

const (
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeInfeasible       ErrorCode = "INFEASIBLE"
	CodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	CodeConflictDetected ErrorCode = "CONFLICT_DETECTED"
	CodePastDateWarning  ErrorCode = "PAST_DATE_WARNING"
	CodeStaleVersion     ErrorCode = "STALE_VERSION"
	CodeNotFound         ErrorCode = "NOT_FOUND"
)

// Error is a typed planner error. Details carries machine-readable context
// (remaining hours, offending dates, ...) for the caller.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error carrying the same code, so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

// NewError builds a typed error
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches a detail and returns the same error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is checks against a code only
var (
	ErrInvalidInput     = &Error{Code: CodeInvalidInput}
	ErrInfeasible       = &Error{Code: CodeInfeasible}
	ErrCapacityExceeded = &Error{Code: CodeCapacityExceeded}
	ErrStaleVersion     = &Error{Code: CodeStaleVersion}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrPastDateWarning  = &Error{Code: CodePastDateWarning}
)

// CodeOf extracts the code of a typed error, or "" for anything else
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// InvalidInput is shorthand for NewError(CodeInvalidInput, ...)
func InvalidInput(format string, args ...any) *Error {
	return NewError(CodeInvalidInput, format, args...)
}

// NotFound is shorthand for NewError(CodeNotFound, ...)
func NotFound(format string, args ...any) *Error {
	return NewError(CodeNotFound, format, args...)
}
