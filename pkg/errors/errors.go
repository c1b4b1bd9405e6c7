package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of a failure. Summaries group failed
// items by type so a run can report cause categories.
type ErrorType string

const (
	ErrorTypeStructural  ErrorType = "structural"
	ErrorTypeDelivery    ErrorType = "delivery"
	ErrorTypeOrganize    ErrorType = "organize"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeCancelled   ErrorType = "cancelled"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a type, a message, an optional HTTP status code and the
// underlying cause.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type without a cause.
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates an error of the given type around err.
func Wrap(t ErrorType, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// Structural reports a listing page that does not have the expected shape.
func Structural(msg string, err error) *Error {
	return Wrap(ErrorTypeStructural, msg, err)
}

// Delivery reports a failure to obtain an item's archive.
func Delivery(msg string, err error) *Error {
	return Wrap(ErrorTypeDelivery, msg, err)
}

// Organize reports a failure to unpack or install a delivered archive.
func Organize(msg string, err error) *Error {
	return Wrap(ErrorTypeOrganize, msg, err)
}

// Network reports a transport-level failure.
func Network(msg string, err error) *Error {
	return Wrap(ErrorTypeNetwork, msg, err)
}

// TypeOf returns the ErrorType of the first *Error in err's chain, or
// ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError, ErrorTypeDelivery:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
