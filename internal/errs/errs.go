// Package errs defines the error taxonomy shared by all components. Every
// error surfaced to a caller carries a stable Kind plus a human-readable
// message, so the HTTP layer can map failures to status codes and clients
// can distinguish configuration problems from transient upstream ones.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindNotFound        Kind = "not_found"        // unknown playlist/song/job id
	KindUnauthenticated Kind = "unauthenticated"  // no cached credential
	KindAuthExpired     Kind = "auth_expired"     // token refresh failed
	KindInvalidInput    Kind = "invalid_input"    // malformed path, bad format/category
	KindIOFailure       Kind = "io_failure"       // filesystem error during scan/copy
	KindExternal        Kind = "external_failure" // catalog or executor error
	KindConflict        Kind = "conflict"         // duplicate in-flight target
	KindUnavailable     Kind = "unavailable"      // optional component not installed
)

// Error is a kinded error with an optional wrapped cause.
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

// E constructs a kinded error from a message and optional cause.
func E(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Ef constructs a kinded error with a formatted message.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error for a named resource and id.
func NotFound(resource string, id interface{}) *Error {
	return Ef(KindNotFound, "%s %v not found", resource, id)
}

// KindOf extracts the Kind from err, walking the wrap chain. Errors
// without a kind report KindIOFailure only when explicitly wrapped; plain
// errors return the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
