// Package errors provides the structured error system used across flatfs.
// Every failure surfaced by the filesystem adapter or the storage layer is an
// *Error carrying a Kind, so callers can branch on the condition without
// string matching, and errors.Is comparisons work across wrapping.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a flatfs failure.
type Kind string

const (
	// KindNotFound indicates the key or path does not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindAlreadyExists indicates create without overwrite, or mkdir over a file.
	KindAlreadyExists Kind = "ALREADY_EXISTS"
	// KindDirectoryNotEmpty indicates a non-recursive delete of a populated directory.
	KindDirectoryNotEmpty Kind = "DIRECTORY_NOT_EMPTY"
	// KindIsADirectory indicates a file operation applied to a directory.
	KindIsADirectory Kind = "IS_A_DIRECTORY"
	// KindIsAFile indicates a directory operation applied to a file.
	KindIsAFile Kind = "IS_A_FILE"
	// KindInvalidArgument indicates a malformed path or parameter.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	// KindUnsupportedConfiguration indicates an invalid configuration value,
	// such as an unknown reader algorithm version.
	KindUnsupportedConfiguration Kind = "UNSUPPORTED_CONFIGURATION"
	// KindStreamClosed indicates I/O on a closed stream.
	KindStreamClosed Kind = "STREAM_CLOSED"
	// KindStorageFailure is an opaque failure surfaced from the underlying
	// store, after any retries have been exhausted.
	KindStorageFailure Kind = "STORAGE_FAILURE"
)

// Error is a structured flatfs error.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Key     string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.Op != "" && e.Path != "":
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Path, e.Kind, msg)
	case e.Op != "" && e.Key != "":
		return fmt.Sprintf("%s %q: %s: %s", e.Op, e.Key, e.Kind, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by Kind, enabling errors.Is(err, &Error{Kind: ...}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind with a plain message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// E creates an error of the given kind for an operation and path.
func E(kind Kind, op, path, message string) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Message: message}
}

// WithKey attaches the storage key involved.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf returns the kind of err, unwrapping as needed, or "" when err is not
// a flatfs error.
func KindOf(err error) Kind {
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is (or wraps) a flatfs error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound is shorthand for IsKind(err, KindNotFound).
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// Retryable reports whether err is of a kind the retry wrapper is allowed to
// re-execute. Only opaque storage failures are retried; structural conditions
// such as NotFound or AlreadyExists describe durable state and retrying them
// cannot help.
func Retryable(err error) bool {
	return IsKind(err, KindStorageFailure)
}
