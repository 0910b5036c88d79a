// Package apperr defines the error kinds surfaced by the account and
// transaction services. The HTTP layer maps a Kind to a status code; the
// Code is the stable machine-readable value returned to clients.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindMissingToken
	KindTokenExpired
	KindTokenInvalid
	KindForbidden
	KindNotFound
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindMissingToken:
		return "missing_token"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenInvalid:
		return "token_invalid"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unexpected"
	}
}

// Code returns the error code sent in response bodies.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_FAILED"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidCredentials:
		return "AUTH_INVALID_CREDENTIALS"
	case KindMissingToken:
		return "AUTH_MISSING_TOKEN"
	case KindTokenExpired:
		return "AUTH_TOKEN_EXPIRED"
	case KindTokenInvalid:
		return "AUTH_INVALID_TOKEN"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "SERVER_ERROR"
	}
}

// Error carries a Kind, a user-facing Message and, for validation failures,
// the offending Field. Err holds the internal cause and is never shown to
// clients. RetryAfter is set on rate-limited errors.
type Error struct {
	Kind       Kind
	Field      string
	Message    string
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, apperr.ErrInvalidCredentials).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Field == "" || t.Field == e.Field)
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials."}
	ErrMissingToken       = &Error{Kind: KindMissingToken, Message: "Authorization required."}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired, Message: "Session has expired. Please log in again."}
	ErrTokenInvalid       = &Error{Kind: KindTokenInvalid, Message: "Invalid token."}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "Unauthorized access."}
)

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

// Unexpected wraps an infrastructure failure. The cause stays internal.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "Server error.", Err: err}
}

// TokenExpired and TokenInvalid keep the parser error as the cause for logs.
func TokenExpired(cause error) *Error {
	return &Error{Kind: KindTokenExpired, Message: ErrTokenExpired.Message, Err: cause}
}

func TokenInvalid(cause error) *Error {
	return &Error{Kind: KindTokenInvalid, Message: ErrTokenInvalid.Message, Err: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// As returns err as an *Error, wrapping anything else as unexpected.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected(err)
}
