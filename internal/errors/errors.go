// Package errors defines the WAL's error taxonomy: a small set of kinds
// (not type names) that every exported error belongs to, with sentinel
// values checkable via errors.Is plus a classifier that tells callers
// whether retrying makes sense.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a WAL error for callers that need to branch on cause
// without parsing error strings.
type Kind int

const (
	// Io covers underlying storage errors: open/read/write/sync failures
	// not caused by the on-disk format itself.
	Io Kind = iota
	// Corruption covers any format violation: bad magic, bad version, bad
	// checksum, oversized field, truncated or trailing bytes, invalid op.
	Corruption
	// SizeLimit is writer-only: the segment has reached its configured
	// size limit and the caller must rotate to a new segment.
	SizeLimit
	// InvalidFormat is a convenience alias for Corruption raised while
	// identifying a file's format from its magic bytes.
	InvalidFormat
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Corruption:
		return "corruption"
	case SizeLimit:
		return "size_limit"
	case InvalidFormat:
		return "invalid_format"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a WAL error tagged with a Kind, built with Wrap or Corruptf;
// callers compare kinds with errors.Is against the Err* sentinels below, or
// call KindOf to recover the Kind directly.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // underlying cause, if any; may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCorruption) match any *Error of that Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == ""
}

// Sentinel values used purely for errors.Is comparisons against a Kind,
// e.g. errors.Is(err, errors.ErrCorruption). Their Msg is intentionally
// empty so Error.Is matches on Kind alone.
var (
	ErrIo            = &Error{Kind: Io}
	ErrCorruption    = &Error{Kind: Corruption}
	ErrSizeLimit     = &Error{Kind: SizeLimit}
	ErrInvalidFormat = &Error{Kind: InvalidFormat}
)

// Wrap builds a new *Error of the given kind with a message and optional
// underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Corruptf builds a Corruption error with a formatted message, the common
// case in the header and entry codecs where every format violation names
// which invariant failed.
func Corruptf(format string, args ...interface{}) *Error {
	return &Error{Kind: Corruption, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind of err if it (or something it wraps) is a
// *Error, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
