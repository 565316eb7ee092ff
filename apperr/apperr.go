// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidCredential Kind = "invalid_credential"
	KindAccessDenied      Kind = "access_denied"
	KindPendingApproval   Kind = "pending_approval"
	KindAlreadyProcessed  Kind = "already_processed"
	KindRateLimited       Kind = "rate_limited"
	KindFull              Kind = "full"
	KindDuplicate         Kind = "duplicate"
	KindInsufficientTeams Kind = "insufficient_teams"
	KindNotCompleted      Kind = "not_completed"
	KindValidation        Kind = "validation"
	KindUnauthorized      Kind = "unauthorized"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

// Error carries a category and a message safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Internal wraps a store or transport failure. The caller may retry.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

func NotFound(msg string) *Error          { return New(KindNotFound, msg) }
func InvalidCredential(msg string) *Error { return New(KindInvalidCredential, msg) }
func AccessDenied(msg string) *Error      { return New(KindAccessDenied, msg) }
func PendingApproval(msg string) *Error   { return New(KindPendingApproval, msg) }
func AlreadyProcessed(msg string) *Error  { return New(KindAlreadyProcessed, msg) }
func RateLimited(msg string) *Error       { return New(KindRateLimited, msg) }
func Validation(msg string) *Error        { return New(KindValidation, msg) }
func Duplicate(msg string) *Error         { return New(KindDuplicate, msg) }

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal error, please retry"
		}
		return e.Message
	}
	return "internal error, please retry"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidCredential, KindUnauthorized:
		return http.StatusUnauthorized
	case KindAccessDenied, KindPendingApproval:
		return http.StatusForbidden
	case KindAlreadyProcessed, KindFull, KindDuplicate:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindInsufficientTeams, KindNotCompleted:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
