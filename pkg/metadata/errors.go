package metadata

import "errors"

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (entity not found, already exists, ...)
// as opposed to infrastructure errors (disk failure, corrupt record).
//
// The catalog engine translates StoreError codes to catalog error codes.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the catalog path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested entity doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entity already lives at the path
	ErrAlreadyExists

	// ErrInvalidArgument indicates a malformed entity or path
	ErrInvalidArgument

	// ErrNotCollection indicates a parent path names a data object
	ErrNotCollection

	// ErrIOError indicates the backing storage failed or returned a
	// record that cannot be decoded
	ErrIOError
)

// IsNotFound reports whether err is a StoreError with ErrNotFound.
func IsNotFound(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr) && serr.Code == ErrNotFound
}

// IsAlreadyExists reports whether err is a StoreError with ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr) && serr.Code == ErrAlreadyExists
}
