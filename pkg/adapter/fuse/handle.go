package fuse

import (
	"context"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
)

// handle is an open data object. Writes go straight to the catalog at the
// descriptor's offset, so only sequential writes are accepted.
type handle struct {
	fs     *catalogFS
	fd     catalog.Descriptor
	path   string
	offset int64
	closed bool
}

var (
	_ gofuse.FileWriter   = (*handle)(nil)
	_ gofuse.FileFlusher  = (*handle)(nil)
	_ gofuse.FileReleaser = (*handle)(nil)
)

func (h *handle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return 0, syscall.EBADF
	}
	if off != h.offset {
		logger.Debug("fuse write %s: offset %d, expected %d", h.path, off, h.offset)
		return 0, syscall.ESPIPE
	}

	n, err := h.fs.session.Write(ctx, h.fd, data)
	h.offset += int64(n)
	if err != nil {
		return uint32(n), toErrno(err)
	}
	return uint32(n), 0
}

// Flush closes the descriptor. close(2) waits for FLUSH but not for
// RELEASE, so finalizing here means a stat right after close already sees
// the object's size and checksum. Writes through a dup'd descriptor after
// the first close fail with EBADF.
func (h *handle) Flush(ctx context.Context) syscall.Errno {
	return h.close(ctx)
}

func (h *handle) Release(ctx context.Context) syscall.Errno {
	return h.close(ctx)
}

func (h *handle) close(ctx context.Context) syscall.Errno {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	if h.closed {
		return 0
	}
	h.closed = true
	return toErrno(h.fs.session.Close(ctx, h.fd))
}
