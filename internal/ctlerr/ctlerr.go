// Package ctlerr defines the controller's error taxonomy: the small set of
// kinds a project or link operation can fail with, and the HTTP status an
// (out of scope) API layer would translate each one to. Every error raised
// by internal/compute, internal/link, and internal/project is one of these,
// or, for a project broadcast to several computes, a join of them.
package ctlerr

import (
	"errors"
	"fmt"

	perrors "github.com/pkg/errors"
)

// Kind classifies a controller error.
type Kind int

const (
	// KindTransport covers network/timeout failures talking to a compute.
	KindTransport Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindCancelled:
		return "cancelled"
	default:
		return "transport"
	}
}

// Status returns the HTTP-equivalent status code for k, for the benefit of
// the outer API surface this core does not itself implement.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	default:
		return 500
	}
}

// Error is the concrete error type behind every constructor in this package.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind reports the taxonomy bucket this error belongs to.
func (e *Error) Kind() Kind { return e.kind }

// Is lets errors.Is(err, ctlerr.NotFound("")) match by kind, ignoring the
// message and cause, so callers can test "is this a NotFound" without
// constructing an exact string.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind
}

func newError(kind Kind, format string, arg ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, arg...)}
}

// BadRequest signals a malformed identifier or request body; no mutation
// occurred.
func BadRequest(format string, arg ...interface{}) *Error {
	return newError(KindBadRequest, format, arg...)
}

// NotFound signals an unknown project/node/link id, or a NIO already gone
// during a delete path. Delete paths swallow this; lookups surface it.
func NotFound(format string, arg ...interface{}) *Error {
	return newError(KindNotFound, format, arg...)
}

// Conflict signals a state the caller cannot resolve by retrying as-is: no
// common subnet between two computes, or no runnable capture target.
func Conflict(format string, arg ...interface{}) *Error {
	return newError(KindConflict, format, arg...)
}

// Cancelled wraps a cancellation observed mid-operation, after cleanup ran.
func Cancelled(cause error) *Error {
	return &Error{kind: KindCancelled, msg: "operation cancelled", cause: cause}
}

// Transport wraps a network/HTTP failure talking to a compute. It uses
// pkg/errors.Wrap, not fmt.Errorf, to keep a stack frame at the call site
// that issued the doomed request — useful when a broadcast across several
// computes fails on only one of them and the aggregate needs to say which.
func Transport(cause error, format string, arg ...interface{}) *Error {
	msg := fmt.Sprintf(format, arg...)
	return &Error{kind: KindTransport, msg: msg, cause: perrors.Wrap(cause, msg)}
}

// IsNotFound reports whether err is, or wraps, a NotFound error.
func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

// IsConflict reports whether err is, or wraps, a Conflict error.
func IsConflict(err error) bool { return kindOf(err) == KindConflict }

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindTransport
}
