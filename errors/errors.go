package errors

import (
	stderrors "errors"
	"net/http"
)

// Kind is the machine-readable failure family exposed to callers.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is a domain failure with a stable code.
// Sentinels below are compared by identity, so wrap them with %w.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrRoomNotFound     = newError(KindNotFound, "ROOM_NOT_FOUND", "room not found")
	ErrMessageNotFound  = newError(KindNotFound, "MESSAGE_NOT_FOUND", "message not found")
	ErrIdentityNotFound = newError(KindNotFound, "USER_NOT_FOUND", "user not found")

	ErrRoomInactive       = newError(KindInvalidState, "ROOM_INACTIVE", "this room is not available")
	ErrRoomClosed         = newError(KindInvalidState, "ROOM_CLOSED", "this room is not accepting messages at this time")
	ErrMessageNotApproved = newError(KindInvalidState, "MESSAGE_NOT_APPROVED", "only approved messages can be displayed")

	ErrInvalidContent  = newError(KindInvalidInput, "INVALID_CONTENT", "message content is empty or too long")
	ErrRoomMismatch    = newError(KindInvalidInput, "ROOM_MISMATCH", "message does not belong to this room")
	ErrInvalidInput    = newError(KindInvalidInput, "INVALID_INPUT", "invalid input")
	ErrInvalidPassword = newError(KindInvalidInput, "INVALID_PASSWORD", "password does not meet requirements")

	ErrMissingToken       = newError(KindUnauthorized, "NO_TOKEN", "access denied, no token provided")
	ErrInvalidToken       = newError(KindUnauthorized, "INVALID_TOKEN", "invalid or expired token")
	ErrInvalidCredentials = newError(KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	ErrAccountDisabled    = newError(KindUnauthorized, "ACCOUNT_DISABLED", "account is disabled")

	ErrInsufficientRole = newError(KindForbidden, "INSUFFICIENT_PRIVILEGES", "access denied, insufficient privileges")
	ErrRoomAccessDenied = newError(KindForbidden, "ROOM_ACCESS_DENIED", "you do not have access to this room")

	ErrEmailInUse = newError(KindConflict, "EMAIL_IN_USE", "email already in use")
	ErrStoreBusy  = newError(KindConflict, "STORE_BUSY", "too many concurrent updates, please retry")

	ErrInternal        = newError(KindInternal, "INTERNAL", "internal server error")
	ErrTokenGeneration = newError(KindInternal, "TOKEN_ERROR", "token generation failed")
	ErrWorkerPanic     = newError(KindInternal, "WORKER_PANIC", "worker panic")
)

// As finds the first domain Error in err's chain.
func As(err error) (*Error, bool) {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// Is reports whether err wraps target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// KindOf classifies any error. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if domainErr, ok := As(err); ok {
		return domainErr.Kind
	}
	return KindInternal
}

// Public returns the error as it may be shown to a caller: domain errors
// are returned as is, anything else is hidden behind ErrInternal.
func Public(err error) *Error {
	if domainErr, ok := As(err); ok && domainErr.Kind != KindInternal {
		return domainErr
	}
	return ErrInternal
}

func MapToHTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState:
		return http.StatusForbidden
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
