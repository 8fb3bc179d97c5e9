package types

import "fmt"

// ErrorKind classifies a failed operation per spec §7.
type ErrorKind string

const (
	ErrNotFound          ErrorKind = "not_found"
	ErrUnsupportedScheme ErrorKind = "unsupported_scheme"
	ErrInvalidURI        ErrorKind = "invalid_uri"
	ErrSourcePermission  ErrorKind = "source_permission"
	ErrSourceTransient   ErrorKind = "source_transient"
	ErrBlobCorrupt       ErrorKind = "blob_corrupt"
	ErrCatalogConflict   ErrorKind = "catalog_conflict"
	ErrAborted           ErrorKind = "aborted"
	ErrInternal          ErrorKind = "internal"
)

// Error is disktree's typed error record: a Kind plus a human-readable
// message and an optional wrapped cause. This is the typed
// generalization spec.md §9 asks for in place of ad-hoc error strings.
type Error struct {
	Kind    ErrorKind
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

// NewError constructs an Error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err, defaulting to ErrInternal
// for errors that were not produced by this package.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if ok := asError(err, &de); ok {
		return de.Kind
	}
	return ErrInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			*target = de
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
