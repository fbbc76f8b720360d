package vfs

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
)

// StreamStatus is the outcome of the most recent read on a DirStream.
type StreamStatus int

const (
	// StatusNone: nothing has been read since open or rewind
	StatusNone StreamStatus = iota

	// StatusOK: the last read returned an entry
	StatusOK

	// StatusFailed: the last read failed
	StatusFailed

	// StatusExhausted: every entry has been read
	StatusExhausted
)

func (s StreamStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// DirEntry is one entry produced by Readdir.
type DirEntry struct {
	// ID is the entity id, the same one Stat returns for Path.
	ID   int64
	Name string
	Path string
	Kind catalog.Kind
}

// DirStream enumerates one open collection.
//
// A session has at most one open stream. It is created by Opendir and
// released by Closedir, by a later Opendir, or by Disconnect; once released
// every call except Telldir fails with StaleHandle.
type DirStream struct {
	session *Session
	handle  catalog.CollectionHandle
	path    string
	last    *DirEntry
	status  StreamStatus
	stale   bool
}

// Opendir opens the collection at path for enumeration.
//
// If the session already has an open stream, that stream's handle is
// released first and the old *DirStream goes stale.
//
// Errors: NotADirectory when path is a data object, OpenFailure for any
// other catalog refusal.
func (s *Session) Opendir(ctx context.Context, path string) (ds *DirStream, err error) {
	start := time.Now()
	defer func() { s.observe("opendir", start, err) }()

	if err := s.requireConn("opendir"); err != nil {
		return nil, err
	}
	p, err := s.normalize("opendir", path)
	if err != nil {
		return nil, err
	}

	if s.stream != nil {
		logger.Warn("opendir %s: stream on %s was never closed; releasing it", p, s.stream.path)
		s.releaseStream(ctx)
	}

	h, err := s.conn.OpenCollection(ctx, p)
	if err != nil {
		return nil, openCollectionError(p, err)
	}

	ds = &DirStream{session: s, handle: h, path: p}
	s.stream = ds
	s.metrics.SetStreamOpen(true)
	return ds, nil
}

// Path returns the normalized path of the collection being enumerated.
func (ds *DirStream) Path() string { return ds.path }

// Last returns the entry produced by the most recent successful Readdir, or
// nil.
func (ds *DirStream) Last() *DirEntry { return ds.last }

// Readdir returns the next entry.
//
// Sub-collections are reported by their last path segment. Every entry gets
// the id Stat would give its full path.
//
// Returns ErrStreamExhausted once the collection has no more entries,
// RemoteLookupFailure when the catalog read fails and StaleHandle when the
// stream has been released.
func (ds *DirStream) Readdir(ctx context.Context) (entry *DirEntry, err error) {
	s := ds.session
	start := time.Now()
	defer func() { s.observe("readdir", start, err) }()

	if err := ds.check("readdir"); err != nil {
		return nil, err
	}
	if ds.status == StatusExhausted {
		return nil, ErrStreamExhausted
	}

	e, err := s.conn.ReadNext(ctx, ds.handle)
	if errors.Is(err, catalog.ErrEndOfCollection) {
		ds.status = StatusExhausted
		return nil, ErrStreamExhausted
	}
	if err != nil {
		ds.status = StatusFailed
		return nil, remoteError("readdir", ds.path, RemoteLookupFailure, err)
	}

	name := e.Name
	if e.Kind == catalog.KindCollection {
		name = baseOf(e.Path)
	}
	full := joinPath(ds.path, name)

	entry = &DirEntry{
		ID:   s.entities.Insert(full),
		Name: name,
		Path: full,
		Kind: e.Kind,
	}
	ds.last = entry
	ds.status = StatusOK
	return entry, nil
}

// Telldir reports the status of the most recent read. It works on stale
// streams too.
func (ds *DirStream) Telldir() StreamStatus {
	return ds.status
}

// Rewinddir restarts enumeration from the first entry by reopening the
// collection. If the reopen fails the stream is released.
func (ds *DirStream) Rewinddir(ctx context.Context) (err error) {
	s := ds.session
	start := time.Now()
	defer func() { s.observe("rewinddir", start, err) }()

	if err := ds.check("rewinddir"); err != nil {
		return err
	}

	if cerr := s.conn.CloseCollection(ctx, ds.handle); cerr != nil {
		logger.Warn("rewinddir %s: closing handle: %v", ds.path, cerr)
	}

	h, err := s.conn.OpenCollection(ctx, ds.path)
	if err != nil {
		ds.status = StatusFailed
		ds.detach()
		return openCollectionError(ds.path, err)
	}

	ds.handle = h
	ds.last = nil
	ds.status = StatusNone
	return nil
}

// Closedir releases the stream. A second call returns StaleHandle.
func (ds *DirStream) Closedir(ctx context.Context) (err error) {
	s := ds.session
	start := time.Now()
	defer func() { s.observe("closedir", start, err) }()

	if err := ds.check("closedir"); err != nil {
		return err
	}

	err = s.conn.CloseCollection(ctx, ds.handle)
	ds.detach()
	if err != nil {
		return remoteError("closedir", ds.path, RemoteError, err)
	}
	return nil
}

// check fails when the stream is no longer the session's open stream.
func (ds *DirStream) check(op string) error {
	if ds.stale || ds.session.stream != ds {
		return newError(StaleHandle, op, ds.path, nil)
	}
	if ds.session.conn == nil {
		return newError(NotConnected, op, ds.path, nil)
	}
	return nil
}

// detach marks the stream stale and clears it from the session.
func (ds *DirStream) detach() {
	ds.stale = true
	if ds.session.stream == ds {
		ds.session.stream = nil
		ds.session.metrics.SetStreamOpen(false)
	}
}

// releaseStream closes the session's open stream, logging catalog failures.
func (s *Session) releaseStream(ctx context.Context) {
	ds := s.stream
	if err := s.conn.CloseCollection(ctx, ds.handle); err != nil {
		logger.Warn("releasing stream on %s: %v", ds.path, err)
	}
	ds.detach()
}

func openCollectionError(p string, err error) error {
	if code, ok := catalog.CodeOf(err); ok && code == catalog.CodeNotDirectory {
		return newError(NotADirectory, "opendir", p, err)
	}
	return remoteError("opendir", p, OpenFailure, err)
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}
