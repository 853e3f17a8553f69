package mq

import (
	"errors"
	"fmt"
)

// ErrorType groups broker client failures.
type ErrorType string

const (
	ErrorConnection   ErrorType = "CONNECTION"
	ErrorNetwork      ErrorType = "NETWORK"
	ErrorValidation   ErrorType = "VALIDATION"
	ErrorTimeout      ErrorType = "TIMEOUT"
	ErrorNotFound     ErrorType = "NOT_FOUND"
	ErrorSubscription ErrorType = "SUBSCRIPTION"
	ErrorInternal     ErrorType = "INTERNAL"
)

// Error is the error returned by broker adapters. Its rendered form is
// "[TYPE:CODE] message - details"; the ingestion classifier relies on the
// CONN_ code prefix of connection errors.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewConnectionError(message string, cause error) *Error {
	return &Error{Type: ErrorConnection, Code: "CONN_001", Message: message, Cause: cause}
}

// NewClosedError reports a read or write attempted on a client that was
// closed on purpose.
func NewClosedError(message string) *Error {
	return &Error{Type: ErrorConnection, Code: "CONN_CLOSED", Message: message}
}

func NewNetworkError(message string, cause error) *Error {
	return &Error{Type: ErrorNetwork, Code: "NET_001", Message: message, Cause: cause}
}

func NewValidationError(message, details string) *Error {
	return &Error{Type: ErrorValidation, Code: "VAL_001", Message: message, Details: details}
}

func NewTimeoutError(message string) *Error {
	return &Error{Type: ErrorTimeout, Code: "TIMEOUT_001", Message: message}
}

func NewNotFoundError(resource, id string) *Error {
	return &Error{Type: ErrorNotFound, Code: "NOT_FOUND_001", Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

func NewSubscriptionError(message string, cause error) *Error {
	return &Error{Type: ErrorSubscription, Code: "SUB_001", Message: message, Cause: cause}
}

// IsType reports whether err (or anything it wraps) is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}
