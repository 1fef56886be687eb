package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can choose between rejecting,
// retrying, or forcing a resync without string matching.
type Kind string

const (
	// KindNotFound means a referenced workspace, task, or entity is absent.
	KindNotFound Kind = "not_found"
	// KindConflict covers duplicate names, stale note versions, and
	// duplicate presence claims.
	KindConflict Kind = "conflict"
	// KindInvalidState marks a transition the entity cannot make, such as
	// completing an already-completed task.
	KindInvalidState Kind = "invalid_state"
	// KindValidation marks empty or oversized input rejected before any
	// store access.
	KindValidation Kind = "validation"
	// KindOverflow means a subscriber buffer was exceeded. The subscriber
	// must resync from its last acknowledged sequence; nothing is fatal.
	KindOverflow Kind = "overflow"
	// KindUnavailable means the store or bus is temporarily unreachable.
	// Callers may retry.
	KindUnavailable Kind = "unavailable"
)

// Error carries a Kind alongside a message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two apperr errors by kind alone.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, or returns empty string for errors
// outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsOverflow(err error) bool     { return KindOf(err) == KindOverflow }
func IsUnavailable(err error) bool  { return KindOf(err) == KindUnavailable }
