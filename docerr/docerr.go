// Package docerr defines the structured error kinds shared across the
// navigation engine: providers, the disk cache, and the navigator all
// report failures through these so callers can branch on Kind without
// parsing message text.
package docerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the handful of ways a lookup, load, or search can fail.
type Kind int

const (
	// Unknown is the zero value; never returned by this package.
	Unknown Kind = iota

	// NotFound means no provider produced a CrateInfo for the requested
	// (name, constraint), or a path walk failed within a loaded crate.
	NotFound

	// UnsupportedFormat means the JSON schema-version is outside the set
	// this build understands.
	UnsupportedFormat

	// Transport means a remote fetch failed in a way that may succeed on
	// retry (network error, non-2xx that isn't a terminal 404).
	Transport

	// Build means a local toolchain invocation failed; the error carries
	// the build's diagnostic text.
	Build

	// Corruption means a cached file could not be parsed. Callers on a
	// caching path should treat this as a miss; only the deepest layer
	// surfaces it as a hard error.
	Corruption

	// IO means a filesystem read or write failed for a non-cache path.
	IO
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case UnsupportedFormat:
		return "unsupported_format"
	case Transport:
		return "transport"
	case Build:
		return "build"
	case Corruption:
		return "corruption"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and a message describing
// what was being attempted.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error around cause. If cause is nil, Wrap returns nil,
// so it's safe to use as `return docerr.Wrap(docerr.IO, "...", err)` at the
// tail of a function.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given Kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
