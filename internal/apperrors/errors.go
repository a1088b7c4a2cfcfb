// Package apperrors defines the typed error kinds shared across the service
// so that callers can react to specific failures (lock contention, missing
// records, exhausted id allocation) instead of matching error strings.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure.
type Kind int

const (
	Unknown Kind = iota
	// NotFound means a referenced run, case or record is absent.
	NotFound
	// Validation means malformed input, an empty name, a duplicate name, etc.
	Validation
	// LockHeld means another tab currently holds the run lock.
	LockHeld
	// LockExpired means the caller's own lease lapsed (or was never taken).
	LockExpired
	// Allocation means the id generation retry budget was exceeded.
	Allocation
	// Store is an opaque passthrough of an underlying storage failure.
	Store
)

// Error carries a kind plus an optional wrapped cause. For LockHeld errors
// the conflicting owner's identity is carried along so the caller can tell
// the user who has the run open.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	// Set only for LockHeld.
	LockedBy string
	TabID    string
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// LockHeldBy builds a LockHeld error naming the current owner.
func LockHeldBy(runID, lockedBy, tabID string) *Error {
	return &Error{
		Kind:     LockHeld,
		Msg:      fmt.Sprintf("test run %s is locked by %s in another tab", runID, lockedBy),
		LockedBy: lockedBy,
		TabID:    tabID,
	}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, or Unknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
