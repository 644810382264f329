package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure. The HTTP layer maps kinds to status codes.
type ErrorKind string

const (
	KindValidation            ErrorKind = "ValidationError"
	KindInvalidCoordinate     ErrorKind = "InvalidCoordinate"
	KindInvalidBloodType      ErrorKind = "InvalidBloodType"
	KindIncompatibleBloodType ErrorKind = "IncompatibleBloodType"
	KindInvalidState          ErrorKind = "InvalidState"
	KindInvalidTransition     ErrorKind = "InvalidTransition"
	KindRequestNotActive      ErrorKind = "RequestNotActive"
	KindNotFound              ErrorKind = "NotFound"
	KindUnauthorized          ErrorKind = "Unauthorized"
	KindUnauthenticated       ErrorKind = "Unauthenticated"
	KindInternal              ErrorKind = "Internal"
)

type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
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

// Is matches any *Error of the same kind, so sentinels can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and message to an underlying cause.
func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrUserNotFound     = NewError(KindNotFound, "user not found")
	ErrRequestNotFound  = NewError(KindNotFound, "blood request not found")
	ErrResponseNotFound = NewError(KindNotFound, "response not found")
	ErrDonationNotFound = NewError(KindNotFound, "donation not found")
	ErrCenterNotFound   = NewError(KindNotFound, "donation center not found")

	ErrUnauthorized    = NewError(KindUnauthorized, "you are not allowed to perform this action")
	ErrUnauthenticated = NewError(KindUnauthenticated, "authentication required")
)
