// Package registry provides the bidirectional path <-> integer table used to
// hand out stable small identifiers for catalog paths.
//
// The remote catalog has no notion of inode numbers or POSIX descriptors, so
// the bridge invents them. A PathRegistry guarantees that:
//   - the forward (path -> id) and inverse (id -> path) maps are always
//     consistent, with no orphan entries in either direction
//   - an id, once bound, never refers to a different path unless the path is
//     erased first
//   - ids come from a monotonically increasing counter and are never reused,
//     even after Erase
//
// Never reusing ids means a stale id cached by a caller can only miss, it can
// never silently resolve to an unrelated path.
//
// Thread Safety:
// A PathRegistry is NOT safe for concurrent use. It is owned by a single
// session, which serializes access.
package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups of a path or id that is not bound.
var ErrNotFound = errors.New("registry: not found")

// ID is the set of integer types a registry can hand out.
type ID interface {
	~int | ~int32 | ~int64 | ~uint32 | ~uint64
}

// PathRegistry is a bidirectional map between absolute paths and integer ids.
//
// The zero value is not usable; create instances with New.
type PathRegistry[T ID] struct {
	counter T
	ids     map[string]T
	paths   map[T]string
}

// New returns an empty registry whose first allocated id is 1.
func New[T ID]() *PathRegistry[T] {
	return &PathRegistry[T]{
		ids:   make(map[string]T),
		paths: make(map[T]string),
	}
}

// Insert returns the id bound to path, allocating a new one if the path is
// not yet registered. Repeated calls with the same path return the same id.
func (r *PathRegistry[T]) Insert(path string) T {
	if id, ok := r.ids[path]; ok {
		return id
	}

	// Map keeps the counter at or above every bound id, so the next value
	// is always free.
	r.counter++
	r.ids[path] = r.counter
	r.paths[r.counter] = path
	return r.counter
}

// Map binds path to id explicitly.
//
// Returns false and leaves the registry untouched if either the path or the
// id is already bound (to anything, including each other).
func (r *PathRegistry[T]) Map(path string, id T) bool {
	if _, ok := r.ids[path]; ok {
		return false
	}
	if _, ok := r.paths[id]; ok {
		return false
	}

	r.ids[path] = id
	r.paths[id] = path
	if id > r.counter {
		r.counter = id
	}
	return true
}

// Erase removes path and its id. Erasing an absent path is a no-op.
// The counter is not rewound, so the erased id is never handed out again.
func (r *PathRegistry[T]) Erase(path string) {
	id, ok := r.ids[path]
	if !ok {
		return
	}
	delete(r.ids, path)
	delete(r.paths, id)
}

// ID returns the id bound to path.
func (r *PathRegistry[T]) ID(path string) (T, error) {
	id, ok := r.ids[path]
	if !ok {
		return 0, fmt.Errorf("path %q: %w", path, ErrNotFound)
	}
	return id, nil
}

// Path returns the path bound to id.
func (r *PathRegistry[T]) Path(id T) (string, error) {
	path, ok := r.paths[id]
	if !ok {
		return "", fmt.Errorf("id %d: %w", id, ErrNotFound)
	}
	return path, nil
}

// Len returns the number of live bindings.
func (r *PathRegistry[T]) Len() int {
	return len(r.ids)
}
