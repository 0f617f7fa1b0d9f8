package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeStructural       ErrorType = "structural"
	ErrorTypeMalformedAddress ErrorType = "malformed_address"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeNotInteractable  ErrorType = "not_interactable"
	ErrorTypeTransfer         ErrorType = "transfer"
	ErrorTypeTimeout          ErrorType = "timeout"
	ErrorTypeNaming           ErrorType = "naming"
	ErrorTypeNetwork          ErrorType = "network"
	ErrorTypeRateLimit        ErrorType = "rate_limit"
	ErrorTypeAuth             ErrorType = "auth"
	ErrorTypeServerError      ErrorType = "server_error"
	ErrorTypeUnknown          ErrorType = "unknown"
)

// Error represents a pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an error of the given type around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Structural reports that the page does not have the expected shape.
func Structural(format string, args ...interface{}) *Error {
	return New(ErrorTypeStructural, fmt.Sprintf(format, args...))
}

// MalformedAddress reports a navigation target that is not a usable URL.
func MalformedAddress(address string, err error) *Error {
	return Wrap(ErrorTypeMalformedAddress, err, fmt.Sprintf("cannot navigate to %q", address))
}

// NotFound reports a selector that matched nothing.
func NotFound(selector string) *Error {
	return New(ErrorTypeNotFound, fmt.Sprintf("no element matches %q", selector))
}

// NotInteractable reports a control that cannot be clicked.
func NotInteractable(description string) *Error {
	return New(ErrorTypeNotInteractable, fmt.Sprintf("element %s is not interactable", description))
}

// Transfer reports a failed content download.
func Transfer(address string, code int, err error) *Error {
	return &Error{
		Type:    ErrorTypeTransfer,
		Message: fmt.Sprintf("transfer of %s failed", address),
		Code:    code,
		Err:     err,
	}
}

// Timeout reports an operation that exceeded its bound.
func Timeout(format string, args ...interface{}) *Error {
	return New(ErrorTypeTimeout, fmt.Sprintf(format, args...))
}

// TypeOf returns the ErrorType of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsFatal reports whether err must abort a pipeline run
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch TypeOf(err) {
	case ErrorTypeStructural, ErrorTypeMalformedAddress, ErrorTypeNotFound,
		ErrorTypeTimeout, ErrorTypeAuth:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeStructural, ErrorTypeMalformedAddress:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}

// FromStatusCode maps an HTTP status code to an error type
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
