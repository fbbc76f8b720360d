package vfs

import (
	"errors"
	"fmt"

	"github.com/marmos91/catalogfs/pkg/catalog"
)

// ErrStreamExhausted is returned by Readdir once every entry of the
// collection has been read. It is an end-of-stream signal, not a failure.
var ErrStreamExhausted = errors.New("directory stream exhausted")

// Code is the category of a session error.
type Code int

const (
	// ConfigError: the connection environment could not be loaded
	ConfigError Code = iota + 1

	// ConnectionError: the catalog could not be reached
	ConnectionError

	// AuthError: the catalog rejected the credentials
	AuthError

	// NotFound: a path or id is absent from a registry or the catalog
	NotFound

	// InvalidPath: normalization escapes the catalog root or the input is
	// malformed
	InvalidPath

	// RemoteLookupFailure: a catalog stat or query failed
	RemoteLookupFailure

	// OpenFailure: the catalog refused to open a collection or object
	OpenFailure

	// NotADirectory: opendir on something that is not a collection
	NotADirectory

	// ConsistencyViolation: a registry invariant would be broken
	ConsistencyViolation

	// NotConnected: the session has no live connection
	NotConnected

	// StaleHandle: the directory stream was closed or replaced
	StaleHandle

	// RemoteError: any other catalog failure, passed through with its
	// original category
	RemoteError
)

func (c Code) String() string {
	switch c {
	case ConfigError:
		return "config error"
	case ConnectionError:
		return "connection error"
	case AuthError:
		return "authentication error"
	case NotFound:
		return "not found"
	case InvalidPath:
		return "invalid path"
	case RemoteLookupFailure:
		return "remote lookup failure"
	case OpenFailure:
		return "open failure"
	case NotADirectory:
		return "not a directory"
	case ConsistencyViolation:
		return "consistency violation"
	case NotConnected:
		return "not connected"
	case StaleHandle:
		return "stale handle"
	case RemoteError:
		return "remote error"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// Error is returned by every Session operation.
//
// Err holds the underlying cause; catalog failures stay reachable with
// errors.As(err, **catalog.Error).
type Error struct {
	Code Code
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Code.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given Code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// remoteError wraps a catalog failure. Connection-level catalog codes keep
// their meaning; everything else gets the operation's fallback code.
func remoteError(op, path string, fallback Code, err error) *Error {
	code := fallback
	if cc, ok := catalog.CodeOf(err); ok {
		switch cc {
		case catalog.CodeConnection:
			code = ConnectionError
		case catalog.CodeNotConnected:
			code = NotConnected
		case catalog.CodeAuthFailed:
			code = AuthError
		}
	}
	return newError(code, op, path, err)
}
