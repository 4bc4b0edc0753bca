package apperror

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an error for transport mapping and logging.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindAuth        Kind = "authentication"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindRateLimited Kind = "rate_limited"
	KindDependency  Kind = "dependency"
	KindInternal    Kind = "internal"
)

// Error carries a classification, a safe client-facing message and the
// wrapped cause. RetryAfter is set only for rate limited errors.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Auth(message string) *Error {
	return New(KindAuth, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: message, RetryAfter: retryAfter}
}

func Dependency(message string, cause error) *Error {
	return Wrap(KindDependency, message, cause)
}

func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// As extracts an *Error from any error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// StatusCode maps an error to the HTTP status the handler layer returns.
// Unclassified errors map to 500.
func StatusCode(err error) int {
	appErr, ok := As(err)
	if !ok {
		return fiber.StatusInternalServerError
	}

	switch appErr.Kind {
	case KindValidation:
		return fiber.StatusUnprocessableEntity
	case KindAuth:
		return fiber.StatusUnauthorized
	case KindForbidden:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindDependency:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// ClientMessage returns the text safe to expose to API clients. Causes
// of dependency and internal errors stay server-side.
func ClientMessage(err error) string {
	appErr, ok := As(err)
	if !ok {
		return "internal server error"
	}

	switch appErr.Kind {
	case KindDependency:
		return "upstream service unavailable"
	case KindInternal:
		return "internal server error"
	default:
		return appErr.Message
	}
}
