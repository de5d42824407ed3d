package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Result pipeline errors.
var (
	ErrInvalidTransition       = New("INVALID_TRANSITION", http.StatusConflict, "result is not in a state that allows this action")
	ErrOverlappingGradeRange   = New("OVERLAPPING_GRADE_RANGE", http.StatusConflict, "grading range overlaps an existing active range")
	ErrNoApprovedResults       = New("NO_APPROVED_RESULTS", http.StatusNotFound, "no approved results for this student and exam")
	ErrDuplicatePendingRequest = New("DUPLICATE_PENDING_REQUEST", http.StatusConflict, "a pending update request already exists for this result")
	ErrResultNotPublished      = New("RESULT_NOT_PUBLISHED", http.StatusForbidden, "results are not published for this exam")
	ErrTokenExhausted          = New("TOKEN_EXHAUSTED", http.StatusForbidden, "pin has no remaining checks")
	ErrTokenExpired            = New("TOKEN_EXPIRED", http.StatusForbidden, "pin has expired")
	ErrTokenInactive           = New("TOKEN_INACTIVE", http.StatusForbidden, "pin is inactive")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
