package fuse

import (
	"context"
	"errors"
	"os"
	"path"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/vfs"
)

// node is a collection or data object, addressed by its absolute catalog
// path.
type node struct {
	gofuse.Inode
	fs   *catalogFS
	path string
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
)

func (n *node) child(name string) string {
	return path.Join(n.path, name)
}

func (n *node) newChild(ctx context.Context, info *vfs.EntityInfo, out *fuse.EntryOut) *gofuse.Inode {
	fillAttr(&out.Attr, info)
	return n.NewInode(ctx, &node{fs: n.fs, path: info.Path}, gofuse.StableAttr{
		Mode: modeType(info.Kind),
		Ino:  uint64(info.ID),
	})
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	info, err := n.fs.session.Stat(ctx, n.child(name))
	if err != nil {
		return nil, toErrno(err)
	}
	return n.newChild(ctx, info, out), 0
}

func (n *node) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	info, err := n.fs.session.Stat(ctx, n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(&out.Attr, info)
	return 0
}

// Readdir drains a session directory stream into a list. The session has
// one stream, so it cannot be held open across kernel calls.
func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	ds, err := n.fs.session.Opendir(ctx, n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	defer func() {
		if err := ds.Closedir(ctx); err != nil {
			logger.Debug("fuse readdir %s: closedir: %v", n.path, err)
		}
	}()

	var entries []fuse.DirEntry
	for {
		e, err := ds.Readdir(ctx)
		if errors.Is(err, vfs.ErrStreamExhausted) {
			break
		}
		if err != nil {
			return nil, toErrno(err)
		}
		entries = append(entries, fuse.DirEntry{
			Name: e.Name,
			Mode: modeType(e.Kind),
			Ino:  uint64(e.ID),
		})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (n *node) Mkdir(ctx context.Context, name string, _ uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	p := n.child(name)
	if err := n.fs.session.Mkdir(ctx, p); err != nil {
		return nil, toErrno(err)
	}
	info, err := n.fs.session.Stat(ctx, p)
	if err != nil {
		return nil, toErrno(err)
	}
	return n.newChild(ctx, info, out), 0
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	return toErrno(n.fs.session.Rmdir(ctx, n.child(name)))
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	fd, info, errno := n.fs.openIn(ctx, n.path, name, int(flags)|os.O_CREATE, mode)
	if errno != 0 {
		return nil, nil, 0, errno
	}
	return n.newChild(ctx, info, out), &handle{fs: n.fs, fd: fd, path: info.Path}, fuse.FOPEN_DIRECT_IO, 0
}

// Open only supports write access; data objects cannot be read back
// through the session.
func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if int(flags)&syscall.O_ACCMODE == os.O_RDONLY {
		return nil, 0, syscall.ENOTSUP
	}

	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	dir, name := path.Split(n.path)
	fd, info, errno := n.fs.openIn(ctx, path.Clean(dir), name, int(flags), 0)
	if errno != 0 {
		return nil, 0, errno
	}
	return &handle{fs: n.fs, fd: fd, path: info.Path}, fuse.FOPEN_DIRECT_IO, 0
}

// openIn opens name inside dir. Session opens are relative to the working
// directory, so it is switched to dir for the call and restored after.
// Callers hold fs.mu.
func (c *catalogFS) openIn(ctx context.Context, dir, name string, flags int, mode uint32) (catalog.Descriptor, *vfs.EntityInfo, syscall.Errno) {
	s := c.session
	prev := s.Getwd()
	if err := s.Chdir(ctx, dir); err != nil {
		return 0, nil, toErrno(err)
	}
	defer func() {
		if err := s.Chdir(ctx, prev); err != nil {
			logger.Warn("fuse: restoring working directory %s: %v", prev, err)
		}
	}()

	fd, err := s.Open(ctx, name, flags, mode)
	if err != nil {
		return 0, nil, toErrno(err)
	}
	info, err := s.Fstat(ctx, fd)
	if err != nil {
		_ = s.Close(ctx, fd)
		return 0, nil, toErrno(err)
	}
	return fd, info, 0
}
