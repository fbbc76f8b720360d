package fuse

import (
	"errors"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/vfs"
)

func modeType(kind catalog.Kind) uint32 {
	if kind == catalog.KindCollection {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

func fillAttr(out *fuse.Attr, info *vfs.EntityInfo) {
	out.Ino = uint64(info.ID)
	out.Mode = modeType(info.Kind) | info.Mode&0o7777
	out.Nlink = 1
	if info.IsCollection() {
		out.Nlink = 2
	} else {
		out.Size = uint64(info.Size)
		out.Blocks = (out.Size + 511) / 512
	}
	out.Blksize = 4096

	mtime := info.ModifiedAt
	ctime := info.CreatedAt
	out.SetTimes(&mtime, &mtime, &ctime)
}

// toErrno maps session errors to errno values. Remote failures are
// mapped by their catalog category when one is present.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var cerr *catalog.Error
	if errors.As(err, &cerr) {
		switch cerr.Code {
		case catalog.CodeNotFound:
			return syscall.ENOENT
		case catalog.CodeAlreadyExists:
			return syscall.EEXIST
		case catalog.CodeNotEmpty:
			return syscall.ENOTEMPTY
		case catalog.CodeNotDirectory:
			return syscall.ENOTDIR
		case catalog.CodeIsDirectory:
			return syscall.EISDIR
		case catalog.CodeInvalidArgument:
			return syscall.EINVAL
		case catalog.CodePermissionDenied, catalog.CodeAuthFailed:
			return syscall.EACCES
		case catalog.CodeBadHandle:
			return syscall.EBADF
		case catalog.CodeConnection, catalog.CodeNotConnected:
			return syscall.ENOTCONN
		}
	}

	code, ok := vfs.CodeOf(err)
	if !ok {
		return syscall.EIO
	}
	switch code {
	case vfs.NotFound:
		return syscall.ENOENT
	case vfs.InvalidPath:
		return syscall.EINVAL
	case vfs.NotADirectory:
		return syscall.ENOTDIR
	case vfs.NotConnected, vfs.ConnectionError:
		return syscall.ENOTCONN
	case vfs.AuthError:
		return syscall.EACCES
	case vfs.StaleHandle:
		return syscall.ESTALE
	default:
		return syscall.EIO
	}
}
