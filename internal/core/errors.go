// Package core holds the data model and error taxonomy shared by every
// component of the gateway (bus, cache, auth, dispatcher, edge).
package core

import "fmt"

// Kind is the opaque error taxonomy from the gateway's error handling design.
// The Auth Verifier and the Dispatcher wrap their errors in an *Error
// carrying one of these kinds so callers can map to a transport-level
// response without string matching. The bus, session cache and token
// packages return plain errors, which KindOf reports as KindInternal.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindConflict        Kind = "conflict"
	KindUnavailable     Kind = "unavailable"
	KindTimeout         Kind = "timeout"
	KindBadRequest      Kind = "bad_request"
	KindInternal        Kind = "internal"
)

// Error is the typed error every component returns to its caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, core.Conflict("", nil)) style checks work via a
// comparison on Kind rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(k Kind, msg string, err error) *Error {
	return &Error{Kind: k, Message: msg, Err: err}
}

func Unauthenticated(msg string, err error) *Error { return newErr(KindUnauthenticated, msg, err) }
func Conflict(msg string, err error) *Error        { return newErr(KindConflict, msg, err) }
func Unavailable(msg string, err error) *Error     { return newErr(KindUnavailable, msg, err) }
func Timeout(msg string, err error) *Error         { return newErr(KindTimeout, msg, err) }
func BadRequest(msg string, err error) *Error      { return newErr(KindBadRequest, msg, err) }
func Internal(msg string, err error) *Error        { return newErr(KindInternal, msg, err) }

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error,
// defaulting to KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// as is a tiny local errors.As to avoid importing errors just for this.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
