// Package fuse mounts a catalog session as a local filesystem.
//
// The mount root is the session's catalog root. Every kernel request is
// translated into a session operation under a single mutex, since a
// session (and its directory stream) is not safe for concurrent use.
//
// Supported: lookup, getattr, readdir, mkdir, rmdir, create and
// sequential writes. Reads, unlink, rename and setattr are not.
package fuse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/vfs"
)

// Config configures the mount.
type Config struct {
	// Mountpoint is the local directory to mount on. Created if missing.
	Mountpoint string

	// AllowOther lets other local users access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug logs every FUSE request.
	Debug bool

	// EntryTimeout and AttrTimeout control kernel caching. Default: 1s.
	EntryTimeout time.Duration
	AttrTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.EntryTimeout <= 0 {
		c.EntryTimeout = time.Second
	}
	if c.AttrTimeout <= 0 {
		c.AttrTimeout = time.Second
	}
}

// FUSEAdapter serves a session over FUSE.
type FUSEAdapter struct {
	config Config
	fs     *catalogFS

	mu       sync.Mutex
	server   *fuse.Server
	stopOnce sync.Once
}

// New creates an adapter for session. The session must already be
// connected; the adapter never connects or destroys it.
func New(config Config, session *vfs.Session) *FUSEAdapter {
	config.applyDefaults()
	return &FUSEAdapter{
		config: config,
		fs:     &catalogFS{session: session},
	}
}

// Serve mounts the filesystem and blocks until ctx is cancelled or the
// mount is removed from outside (fusermount -u).
func (a *FUSEAdapter) Serve(ctx context.Context) error {
	if a.config.Mountpoint == "" {
		return fmt.Errorf("fuse: mountpoint is required")
	}
	if err := os.MkdirAll(a.config.Mountpoint, 0o755); err != nil {
		return fmt.Errorf("fuse: creating mountpoint %s: %w", a.config.Mountpoint, err)
	}

	root := &node{fs: a.fs, path: a.fs.session.CatalogRoot()}
	entryTimeout := a.config.EntryTimeout
	attrTimeout := a.config.AttrTimeout

	server, err := gofuse.Mount(a.config.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "catalogfs",
			Name:       "catalogfs",
			AllowOther: a.config.AllowOther,
			Debug:      a.config.Debug,
		},
	})
	if err != nil {
		return fmt.Errorf("fuse: mounting at %s: %w", a.config.Mountpoint, err)
	}

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	logger.Info("Catalog mounted at %s (root %s)", a.config.Mountpoint, root.path)

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Stop(stopCtx); err != nil {
			return err
		}
		<-done
		return ctx.Err()
	case <-done:
		logger.Info("Catalog unmounted from %s", a.config.Mountpoint)
		return nil
	}
}

// Stop unmounts the filesystem. Safe to call more than once and before
// Serve has mounted anything.
func (a *FUSEAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server == nil {
		return nil
	}

	var stopErr error
	a.stopOnce.Do(func() {
		errCh := make(chan error, 1)
		go func() { errCh <- server.Unmount() }()

		select {
		case err := <-errCh:
			if err != nil {
				stopErr = fmt.Errorf("fuse: unmount %s: %w", a.config.Mountpoint, err)
			}
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
	})
	return stopErr
}

// Protocol returns "FUSE".
func (a *FUSEAdapter) Protocol() string {
	return "FUSE"
}

// Endpoint returns the mountpoint.
func (a *FUSEAdapter) Endpoint() string {
	return a.config.Mountpoint
}

// catalogFS serializes access to the shared session.
type catalogFS struct {
	mu      sync.Mutex
	session *vfs.Session
}
