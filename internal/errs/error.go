package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with one of the failure classes known to every service.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindTimeout
	KindUnavailable
	KindRemote
	KindInconsistency
)

var kindNames = map[Kind]string{
	KindInternal:        "INTERNAL",
	KindInvalidArgument: "INVALID_ARGUMENT",
	KindUnauthorized:    "UNAUTHORIZED",
	KindForbidden:       "FORBIDDEN",
	KindNotFound:        "NOT_FOUND",
	KindConflict:        "CONFLICT",
	KindRateLimited:     "RATE_LIMITED",
	KindTimeout:         "TIMEOUT",
	KindUnavailable:     "UNAVAILABLE",
	KindRemote:          "REMOTE_ERROR",
	KindInconsistency:   "INTERNAL_INCONSISTENCY",
}

var kindSentinels = map[Kind]error{
	KindInternal:        ErrInternal,
	KindInvalidArgument: ErrInvalidArgument,
	KindUnauthorized:    ErrUnauthorized,
	KindForbidden:       ErrForbidden,
	KindNotFound:        ErrNotFound,
	KindConflict:        ErrConflict,
	KindRateLimited:     ErrRateLimited,
	KindTimeout:         ErrTimeout,
	KindUnavailable:     ErrUnavailable,
	KindRemote:          ErrRemote,
	KindInconsistency:   ErrInconsistency,
}

var kindStatus = map[Kind]int{
	KindInternal:        http.StatusInternalServerError,
	KindInvalidArgument: http.StatusBadRequest,
	KindUnauthorized:    http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindRateLimited:     http.StatusTooManyRequests,
	KindTimeout:         http.StatusGatewayTimeout,
	KindUnavailable:     http.StatusServiceUnavailable,
	KindRemote:          http.StatusBadGateway,
	KindInconsistency:   http.StatusInternalServerError,
}

// KindForStatus returns the first kind whose default status code is code, or KindRemote.
func KindForStatus(code int) Kind {
	for k := KindInternal; k <= KindInconsistency; k++ {
		if kindStatus[k] == code {
			return k
		}
	}
	return KindRemote
}

// String returns the stable wire name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return kindNames[KindInternal]
}

// KindFromString parses a wire name produced by Kind.String.
func KindFromString(s string) (Kind, bool) {
	for k, n := range kindNames {
		if n == s {
			return k, true
		}
	}
	return KindInternal, false
}

// StatusCode returns the default status code for the kind.
func (k Kind) StatusCode() int {
	if c, ok := kindStatus[k]; ok {
		return c
	}
	return http.StatusInternalServerError
}

// Error is the single normalized failure carried between layers and services.
// It always has a message and a status code; the cause is kept for logs only.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	cause      error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches the sentinel of the error kind, so errors.Is(err, ErrNotFound) works on *Error.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// New builds an Error with the default status code of its kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, StatusCode: kind.StatusCode()}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap builds an Error keeping cause for logging. The cause never reaches Message.
func Wrap(kind Kind, msg string, cause error) *Error {
	e := New(kind, msg)
	e.cause = cause
	return e
}

// Remote builds the known-rejection error returned by a downstream service.
func Remote(msg string, statusCode int) *Error {
	if statusCode == 0 {
		statusCode = KindRemote.StatusCode()
	}
	return &Error{Kind: KindRemote, Message: msg, StatusCode: statusCode}
}

// From normalizes any error into *Error. Sentinels keep their kind; anything unknown becomes
// an internal error with a generic message.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	for k, s := range kindSentinels {
		if errors.Is(err, s) {
			return Wrap(k, err.Error(), err)
		}
	}
	return Wrap(KindInternal, "internal error", err)
}

// StatusCode reports the status code that err surfaces with.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).StatusCode
}

// IsRemoteStatus reports whether err is a remote rejection carrying the given status code.
func IsRemoteStatus(err error, code int) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRemote && e.StatusCode == code
}

// Annotate prefixes the normalized message of err, keeping its kind and status code.
func Annotate(err error, prefix string) *Error {
	e := From(err)
	return &Error{Kind: e.Kind, Message: prefix + ": " + e.Message, StatusCode: e.StatusCode, cause: err}
}
