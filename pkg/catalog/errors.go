package catalog

import (
	"errors"
	"fmt"
)

// ErrEndOfCollection is returned by ReadNext once a collection handle has
// produced all of its entries. It is not a failure.
var ErrEndOfCollection = errors.New("end of collection")

// Error is a failure reported by the catalog.
//
// These are catalog-level conditions (no such entity, bad handle, login
// rejected) as opposed to programming errors in the caller.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable description
	Message string

	// Path is the catalog path involved, if any
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode is the category of a catalog error.
type ErrorCode int

const (
	// CodeNotFound: no entity at the path, or unknown user
	CodeNotFound ErrorCode = iota

	// CodeAlreadyExists: an entity already lives at the path
	CodeAlreadyExists

	// CodeNotEmpty: a collection still has children
	CodeNotEmpty

	// CodeNotDirectory: a collection was expected
	CodeNotDirectory

	// CodeIsDirectory: a data object was expected
	CodeIsDirectory

	// CodeInvalidArgument: malformed path, flags or query
	CodeInvalidArgument

	// CodeConnection: the service could not be reached
	CodeConnection

	// CodeAuthFailed: credentials were rejected
	CodeAuthFailed

	// CodeNotConnected: the connection is closed or not authenticated
	CodeNotConnected

	// CodeBadHandle: unknown or already closed collection handle/descriptor
	CodeBadHandle

	// CodePermissionDenied: the descriptor was not opened for this access
	CodePermissionDenied

	// CodeIO: the catalog's storage failed
	CodeIO
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotFound:
		return "not_found"
	case CodeAlreadyExists:
		return "already_exists"
	case CodeNotEmpty:
		return "not_empty"
	case CodeNotDirectory:
		return "not_directory"
	case CodeIsDirectory:
		return "is_directory"
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeConnection:
		return "connection"
	case CodeAuthFailed:
		return "auth_failed"
	case CodeNotConnected:
		return "not_connected"
	case CodeBadHandle:
		return "bad_handle"
	case CodePermissionDenied:
		return "permission_denied"
	case CodeIO:
		return "io"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// NewError builds a catalog error.
func NewError(code ErrorCode, message, path string) *Error {
	return &Error{Code: code, Message: message, Path: path}
}

// CodeOf extracts the code of a catalog error anywhere in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is a catalog CodeNotFound error.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeNotFound
}
