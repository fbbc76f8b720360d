// Package vfs exposes a remote object catalog through a POSIX-shaped
// surface: stable small integer ids for paths, a working directory,
// directory streams and descriptor-based writes.
//
// Architecture:
//
//	Adapter / CLI  ->  Session  ->  catalog.Conn
//	                    |
//	                    +-- Normalize (path canonicalization)
//	                    +-- entity registry     (path <-> int64 id)
//	                    +-- descriptor registry (path <-> newest catalog.Descriptor)
//	                    +-- descriptor history  (catalog.Descriptor -> path)
//	                    +-- DirStream           (zero or one open)
//
// The catalog hands out neither inode numbers nor POSIX descriptors, so the
// session invents and preserves them. Ids from the entity registry are what
// Stat and Readdir report; the catalog's own RemoteID is never used as an id.
//
// Thread Safety:
// A Session is NOT safe for concurrent use. Every call blocks on the
// catalog and mutates unsynchronized state (registries, working directory,
// active stream). Callers serving concurrent requests, like the FUSE
// adapter, serialize access with their own lock.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metrics"
	"github.com/marmos91/catalogfs/pkg/registry"
)

// homeID is the entity id pinned to the home collection on every connect.
const homeID int64 = 1

var (
	errAlreadyConnected = errors.New("session already connected")
	errDestroyed        = errors.New("session destroyed")
)

// EnvSource loads the connection environment and credentials. It is
// consulted on every Connect so that configuration changes are picked up
// on reconnect.
type EnvSource interface {
	Load(ctx context.Context) (catalog.Env, catalog.Credentials, error)
}

// EnvSourceFunc adapts a function to EnvSource.
type EnvSourceFunc func(ctx context.Context) (catalog.Env, catalog.Credentials, error)

// Load calls f(ctx).
func (f EnvSourceFunc) Load(ctx context.Context) (catalog.Env, catalog.Credentials, error) {
	return f(ctx)
}

// StaticEnv returns an EnvSource that always yields env and creds.
func StaticEnv(env catalog.Env, creds catalog.Credentials) EnvSource {
	return EnvSourceFunc(func(context.Context) (catalog.Env, catalog.Credentials, error) {
		return env, creds, nil
	})
}

// Options configures a Session. Both paths are fixed for the session's
// lifetime.
type Options struct {
	// MountPrefix is the local mount point. It is stripped from every
	// path before it reaches the catalog.
	MountPrefix string

	// CatalogRoot bounds every normalized path. Default: "/"
	CatalogRoot string

	// Metrics observes session operations. Nil disables collection.
	Metrics metrics.SessionMetrics
}

// EntityInfo is the result of Stat: the catalog's metadata plus the
// session-local id for the path.
type EntityInfo struct {
	ID   int64
	Path string
	catalog.EntityMetadata
}

// IsCollection reports whether the entity is a collection.
func (e *EntityInfo) IsCollection() bool {
	return e.Kind == catalog.KindCollection
}

// Session is one logged-in view of the catalog.
//
// States: Disconnected -> Connected -> Disconnected. A disconnected session
// can connect again; registries start fresh on every connect. After Destroy
// the session makes no further catalog calls.
type Session struct {
	catalog catalog.Catalog
	envs    EnvSource
	mount   string
	root    string
	metrics metrics.SessionMetrics

	// Connection state. conn is nil while disconnected.
	conn catalog.Conn
	env  catalog.Env
	cwd  string

	entities    *registry.PathRegistry[int64]
	descriptors *registry.PathRegistry[catalog.Descriptor]
	fdPaths     map[catalog.Descriptor]string
	open        map[catalog.Descriptor]struct{}
	stream      *DirStream

	destroyed bool
}

// NewSession creates a disconnected session.
func NewSession(cat catalog.Catalog, envs EnvSource, opts Options) *Session {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoopSessionMetrics()
	}

	return &Session{
		catalog:     cat,
		envs:        envs,
		mount:       opts.MountPrefix,
		root:        canonicalRoot(opts.CatalogRoot),
		metrics:     m,
		entities:    registry.New[int64](),
		descriptors: registry.New[catalog.Descriptor](),
		fdPaths:     make(map[catalog.Descriptor]string),
		open:        make(map[catalog.Descriptor]struct{}),
	}
}

// MountPrefix returns the mount prefix the session strips from paths.
func (s *Session) MountPrefix() string { return s.mount }

// CatalogRoot returns the canonical catalog root.
func (s *Session) CatalogRoot() string { return s.root }

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool { return s.conn != nil }

// Getwd returns the working directory. It is empty until the first
// successful Connect.
func (s *Session) Getwd() string { return s.cwd }

// Env returns the environment of the current connection.
func (s *Session) Env() catalog.Env { return s.env }

// Connect loads the environment, connects and authenticates.
//
// On success the working directory is the user's home collection and the
// entity registry holds exactly that path, pinned to id 1. Any failure
// leaves the session disconnected with its previous state intact.
//
// Errors: ConfigError, ConnectionError, AuthError.
func (s *Session) Connect(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("connect", start, err) }()

	if s.destroyed {
		return newError(NotConnected, "connect", "", errDestroyed)
	}
	if s.conn != nil {
		return newError(ConnectionError, "connect", "", errAlreadyConnected)
	}

	env, creds, err := s.envs.Load(ctx)
	if err != nil {
		return newError(ConfigError, "connect", "", err)
	}
	if creds.User == "" {
		creds.User = env.User
	}
	if creds.Zone == "" {
		creds.Zone = env.Zone
	}

	home := creds.HomePath()
	if _, err := Normalize(home, home, "", s.root); err != nil {
		return newError(ConfigError, "connect", home, errors.New("home collection is outside the catalog root"))
	}

	conn, err := s.catalog.Connect(ctx, env)
	if err != nil {
		return remoteError("connect", "", ConnectionError, err)
	}

	if err := conn.Authenticate(ctx, creds); err != nil {
		if derr := conn.Disconnect(ctx); derr != nil {
			logger.Debug("connect: disconnect after failed login: %v", derr)
		}
		return remoteError("connect", "", AuthError, err)
	}

	s.conn = conn
	s.env = env
	s.cwd = home
	s.entities = registry.New[int64]()
	s.entities.Map(home, homeID)
	s.descriptors = registry.New[catalog.Descriptor]()
	s.fdPaths = make(map[catalog.Descriptor]string)
	s.open = make(map[catalog.Descriptor]struct{})
	s.stream = nil

	s.metrics.SetConnected(true)
	s.metrics.SetOpenDescriptors(0)
	logger.Info("Connected to %s:%d as %s#%s (home %s)", env.Host, env.Port, creds.User, creds.Zone, home)
	return nil
}

// Disconnect closes the active stream and every open descriptor, then
// releases the connection. The session is disconnected afterwards even if
// the catalog reported a failure.
//
// Returns NotConnected when there is no live connection.
func (s *Session) Disconnect(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("disconnect", start, err) }()

	if s.conn == nil {
		return newError(NotConnected, "disconnect", "", nil)
	}

	if s.stream != nil {
		s.releaseStream(ctx)
	}
	for fd := range s.open {
		if cerr := s.conn.CloseObject(ctx, fd); cerr != nil {
			logger.Warn("disconnect: closing descriptor %d: %v", fd, cerr)
		}
	}
	s.open = make(map[catalog.Descriptor]struct{})

	derr := s.conn.Disconnect(ctx)
	s.conn = nil
	s.metrics.SetConnected(false)
	s.metrics.SetOpenDescriptors(0)

	if derr != nil {
		return remoteError("disconnect", "", RemoteError, derr)
	}
	logger.Info("Disconnected from %s:%d", s.env.Host, s.env.Port)
	return nil
}

// Destroy tears the session down. It disconnects if still connected; after
// it returns no further catalog calls are made and Connect fails.
func (s *Session) Destroy(ctx context.Context) {
	if s.destroyed {
		return
	}
	if s.conn != nil {
		if err := s.Disconnect(ctx); err != nil {
			logger.Warn("destroy: %v", err)
		}
	}
	s.destroyed = true
}

// Chdir changes the working directory.
//
// "." is a no-op and ".." moves to the parent unless the working directory
// is already the catalog root. Any other target must name an existing
// collection; otherwise NotFound is returned and the directory is kept.
func (s *Session) Chdir(ctx context.Context, target string) (err error) {
	start := time.Now()
	defer func() { s.observe("chdir", start, err) }()

	if err := s.requireConn("chdir"); err != nil {
		return err
	}

	switch target {
	case ".":
		return nil
	case "..":
		if s.cwd != s.root {
			s.cwd = parentOf(s.cwd)
		}
		return nil
	}

	p, err := s.normalize("chdir", target)
	if err != nil {
		return err
	}

	n, err := s.conn.CountWherePathEquals(ctx, p)
	if err != nil {
		return remoteError("chdir", p, RemoteLookupFailure, err)
	}
	if n <= 0 {
		return newError(NotFound, "chdir", p, nil)
	}

	s.cwd = p
	return nil
}

// Stat returns the catalog metadata of path and the session id for it.
// Repeated calls for the same normalized path return the same id.
//
// Returns RemoteLookupFailure when the catalog has no such entity; the
// underlying *catalog.Error stays reachable with errors.As.
func (s *Session) Stat(ctx context.Context, path string) (info *EntityInfo, err error) {
	start := time.Now()
	defer func() { s.observe("stat", start, err) }()

	if err := s.requireConn("stat"); err != nil {
		return nil, err
	}
	p, err := s.normalize("stat", path)
	if err != nil {
		return nil, err
	}
	return s.statPath(ctx, "stat", p)
}

func (s *Session) statPath(ctx context.Context, op, p string) (*EntityInfo, error) {
	md, err := s.conn.Stat(ctx, p)
	if err != nil {
		return nil, remoteError(op, p, RemoteLookupFailure, err)
	}

	return &EntityInfo{
		ID:             s.entities.Insert(p),
		Path:           p,
		EntityMetadata: *md,
	}, nil
}

// EntityPath returns the path bound to an entity id, as handed out by Stat
// or Readdir.
func (s *Session) EntityPath(id int64) (string, error) {
	p, err := s.entities.Path(id)
	if err != nil {
		return "", newError(NotFound, "lookup", "", err)
	}
	return p, nil
}

// Mkdir creates a collection and registers its path.
func (s *Session) Mkdir(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { s.observe("mkdir", start, err) }()

	if err := s.requireConn("mkdir"); err != nil {
		return err
	}
	p, err := s.normalize("mkdir", path)
	if err != nil {
		return err
	}

	if err := s.conn.MakeCollection(ctx, p); err != nil {
		return remoteError("mkdir", p, RemoteError, err)
	}
	s.entities.Insert(p)
	return nil
}

// Rmdir removes an empty collection and erases its path. Descriptors still
// bound to paths below it are left alone.
func (s *Session) Rmdir(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { s.observe("rmdir", start, err) }()

	if err := s.requireConn("rmdir"); err != nil {
		return err
	}
	p, err := s.normalize("rmdir", path)
	if err != nil {
		return err
	}

	if err := s.conn.RemoveCollection(ctx, p); err != nil {
		return remoteError("rmdir", p, RemoteError, err)
	}
	s.entities.Erase(p)
	return nil
}

// Open opens a data object in the working directory.
//
// Only the last segment of path is used: the object is always
// <cwd>/<base(path)>, so callers position the working directory with Chdir
// first. flags take the os.O_* values. New objects land on the
// environment's default resource.
//
// The returned descriptor is bound to the object path and stays
// resolvable through Fstat after Close. The same path may be open under
// several descriptors at once; each keeps resolving.
//
// A descriptor number the catalog hands out again for a different path is
// ConsistencyViolation only while the earlier descriptor is still open.
// Once it is closed the number is rebound to the new path, and Fstat on it
// reports the new object. This relaxes the stricter rule of treating every
// rebinding as fatal, since catalogs recycle descriptor numbers after close.
func (s *Session) Open(ctx context.Context, path string, flags int, mode uint32) (fd catalog.Descriptor, err error) {
	start := time.Now()
	defer func() { s.observe("open", start, err) }()

	if err := s.requireConn("open"); err != nil {
		return 0, err
	}

	name := baseOf(path)
	if name == "" || name == "." || name == ".." {
		return 0, newError(InvalidPath, "open", path, nil)
	}
	p, err := Normalize(name, s.cwd, "", s.root)
	if err != nil || p == s.cwd {
		return 0, newError(InvalidPath, "open", path, nil)
	}

	fd, err = s.conn.OpenObject(ctx, p, flags, mode, s.env.DefaultResource)
	if err != nil {
		return 0, remoteError("open", p, OpenFailure, err)
	}

	if err := s.bindDescriptor(ctx, p, fd); err != nil {
		return 0, err
	}

	s.open[fd] = struct{}{}
	s.metrics.SetOpenDescriptors(len(s.open))
	logger.Debug("open: %s -> fd %d (flags=%#x)", p, fd, flags)
	return fd, nil
}

// bindDescriptor records fd -> p in the history Fstat reads and makes fd
// the registry's descriptor for p. A descriptor that is still open and
// bound to a different path means the catalog reused a live descriptor,
// which is reported as ConsistencyViolation after closing fd.
func (s *Session) bindDescriptor(ctx context.Context, p string, fd catalog.Descriptor) error {
	if prev, ok := s.fdPaths[fd]; ok && prev != p {
		if _, live := s.open[fd]; live {
			if cerr := s.conn.CloseObject(ctx, fd); cerr != nil {
				logger.Warn("open: closing colliding descriptor %d: %v", fd, cerr)
			}
			logger.Error("open: descriptor %d for %s is still bound to %s", fd, p, prev)
			return newError(ConsistencyViolation, "open", p, nil)
		}
		logger.Debug("open: rebinding closed descriptor %d from %s to %s", fd, prev, p)
	}
	s.fdPaths[fd] = p

	// The registry is one-to-one, so it tracks the newest descriptor per
	// path; older descriptors for p stay in fdPaths.
	if prev, err := s.descriptors.Path(fd); err == nil && prev != p {
		s.descriptors.Erase(prev)
	}
	if prevFD, err := s.descriptors.ID(p); err == nil {
		if prevFD == fd {
			return nil
		}
		s.descriptors.Erase(p)
	}
	s.descriptors.Map(p, fd)
	return nil
}

// Write forwards data to the catalog at the descriptor's current offset
// and returns the number of bytes written.
func (s *Session) Write(ctx context.Context, fd catalog.Descriptor, data []byte) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("write", start, err) }()

	if err := s.requireConn("write"); err != nil {
		return 0, err
	}

	n, err = s.conn.WriteObject(ctx, fd, data)
	if err != nil {
		return n, remoteError("write", s.descriptorPath(fd), RemoteError, err)
	}
	s.metrics.RecordBytesWritten(n)
	return n, nil
}

// Close closes a descriptor. Its registry binding is kept so Fstat keeps
// working on closed descriptors.
func (s *Session) Close(ctx context.Context, fd catalog.Descriptor) (err error) {
	start := time.Now()
	defer func() { s.observe("close", start, err) }()

	if err := s.requireConn("close"); err != nil {
		return err
	}

	err = s.conn.CloseObject(ctx, fd)
	delete(s.open, fd)
	s.metrics.SetOpenDescriptors(len(s.open))
	if err != nil {
		return remoteError("close", s.descriptorPath(fd), RemoteError, err)
	}
	return nil
}

// Fstat stats the path a descriptor was opened on. Closed descriptors
// resolve too. Returns NotFound for a descriptor this session never bound.
func (s *Session) Fstat(ctx context.Context, fd catalog.Descriptor) (info *EntityInfo, err error) {
	start := time.Now()
	defer func() { s.observe("fstat", start, err) }()

	if err := s.requireConn("fstat"); err != nil {
		return nil, err
	}

	p, ok := s.lookupDescriptor(fd)
	if !ok {
		return nil, newError(NotFound, "fstat", "", fmt.Errorf("descriptor %d was never opened", fd))
	}
	return s.statPath(ctx, "fstat", p)
}

// OpenDescriptors returns the number of descriptors not yet closed.
func (s *Session) OpenDescriptors() int {
	return len(s.open)
}

func (s *Session) descriptorPath(fd catalog.Descriptor) string {
	p, _ := s.lookupDescriptor(fd)
	return p
}

// lookupDescriptor resolves fd through the registry, falling back to the
// history for descriptors superseded by a newer open of the same path.
func (s *Session) lookupDescriptor(fd catalog.Descriptor) (string, bool) {
	if p, err := s.descriptors.Path(fd); err == nil {
		return p, true
	}
	p, ok := s.fdPaths[fd]
	return p, ok
}

func (s *Session) requireConn(op string) error {
	if s.conn == nil {
		return newError(NotConnected, op, "", nil)
	}
	return nil
}

func (s *Session) normalize(op, raw string) (string, error) {
	p, err := Normalize(raw, s.cwd, s.mount, s.root)
	if err != nil {
		return "", newError(InvalidPath, op, raw, nil)
	}
	return p, nil
}

func (s *Session) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, time.Since(start), err)
}
