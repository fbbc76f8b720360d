package fuse

import (
	"context"
	"os"
	"sort"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/catalog/local"
	contentmemory "github.com/marmos91/catalogfs/pkg/content/memory"
	metadatamemory "github.com/marmos91/catalogfs/pkg/metadata/memory"
	"github.com/marmos91/catalogfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const home = "/tempZone/home/alice"

// newTestFS returns a catalogFS over a connected session on a fresh local
// engine. Nodes built on it are not mounted, so only operations that do
// not create inodes can be driven directly.
func newTestFS(t *testing.T) *catalogFS {
	t.Helper()
	ctx := context.Background()

	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	engine, err := local.NewEngine(ctx, local.Config{
		Zone:            "tempZone",
		Host:            "localhost",
		Port:            1247,
		DefaultResource: "demoResc",
		BcryptCost:      bcrypt.MinCost,
		Users:           []local.User{{Name: "alice", Password: "secret"}},
	}, metadatamemory.NewMemoryMetadataStore(), store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	s := vfs.NewSession(engine, vfs.StaticEnv(
		catalog.Env{Host: "localhost", Port: 1247, User: "alice", Zone: "tempZone", DefaultResource: "demoResc"},
		catalog.Credentials{Password: "secret"},
	), vfs.Options{})
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { s.Destroy(context.Background()) })

	return &catalogFS{session: s}
}

func writeFile(t *testing.T, fs *catalogFS, dir, name, data string) {
	t.Helper()
	ctx := context.Background()

	fs.mu.Lock()
	fd, info, errno := fs.openIn(ctx, dir, name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	fs.mu.Unlock()
	require.Zero(t, errno)

	h := &handle{fs: fs, fd: fd, path: info.Path}
	n, errno := h.Write(ctx, []byte(data), 0)
	require.Zero(t, errno)
	require.Equal(t, uint32(len(data)), n)
	require.Zero(t, h.Release(ctx))
}

func readAll(t *testing.T, ds interface {
	HasNext() bool
	Next() (fuse.DirEntry, syscall.Errno)
	Close()
}) []fuse.DirEntry {
	t.Helper()
	defer ds.Close()

	var entries []fuse.DirEntry
	for ds.HasNext() {
		e, errno := ds.Next()
		require.Zero(t, errno)
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func TestNode_ReaddirListsObjectsAndCollections(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	require.NoError(t, fs.session.Mkdir(ctx, home+"/sub"))
	writeFile(t, fs, home, "a.txt", "hello")

	n := &node{fs: fs, path: home}
	ds, errno := n.Readdir(ctx)
	require.Zero(t, errno)

	entries := readAll(t, ds)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, uint32(syscall.S_IFREG), entries[0].Mode)
	assert.Equal(t, "sub", entries[1].Name)
	assert.Equal(t, uint32(syscall.S_IFDIR), entries[1].Mode)

	// Inode numbers are the ids Stat hands out for the same paths.
	info, err := fs.session.Stat(ctx, home+"/sub")
	require.NoError(t, err)
	assert.Equal(t, uint64(info.ID), entries[1].Ino)
}

func TestNode_ReaddirOnDataObject(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	writeFile(t, fs, home, "a.txt", "x")

	n := &node{fs: fs, path: home + "/a.txt"}
	_, errno := n.Readdir(ctx)
	assert.Equal(t, syscall.ENOTDIR, errno)
}

func TestNode_GetattrReportsWrittenSize(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	writeFile(t, fs, home, "a.txt", "hello")

	var out fuse.AttrOut
	n := &node{fs: fs, path: home + "/a.txt"}
	require.Zero(t, n.Getattr(ctx, nil, &out))
	assert.Equal(t, uint64(5), out.Size)
	assert.Equal(t, uint32(syscall.S_IFREG), out.Mode&syscall.S_IFMT)

	missing := &node{fs: fs, path: home + "/missing"}
	assert.Equal(t, syscall.ENOENT, missing.Getattr(ctx, nil, &out))
}

func TestNode_Rmdir(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	require.NoError(t, fs.session.Mkdir(ctx, home+"/sub"))

	n := &node{fs: fs, path: home}
	require.Zero(t, n.Rmdir(ctx, "sub"))
	assert.Equal(t, syscall.ENOENT, n.Rmdir(ctx, "sub"))
}

func TestNode_OpenReadOnlyUnsupported(t *testing.T) {
	fs := newTestFS(t)
	n := &node{fs: fs, path: home + "/a.txt"}

	_, _, errno := n.Open(context.Background(), uint32(os.O_RDONLY))
	assert.Equal(t, syscall.ENOTSUP, errno)
}

func TestOpenIn_RestoresWorkingDirectory(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)
	require.NoError(t, fs.session.Mkdir(ctx, home+"/sub"))

	writeFile(t, fs, home+"/sub", "b.txt", "data")

	assert.Equal(t, home, fs.session.Getwd())
	info, err := fs.session.Stat(ctx, home+"/sub/b.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size)
}

func TestHandle_RejectsNonSequentialWrite(t *testing.T) {
	ctx := context.Background()
	fs := newTestFS(t)

	fs.mu.Lock()
	fd, info, errno := fs.openIn(ctx, home, "c.txt", os.O_CREATE|os.O_WRONLY, 0o644)
	fs.mu.Unlock()
	require.Zero(t, errno)

	h := &handle{fs: fs, fd: fd, path: info.Path}
	_, errno = h.Write(ctx, []byte("abc"), 10)
	assert.Equal(t, syscall.ESPIPE, errno)

	_, errno = h.Write(ctx, []byte("abc"), 0)
	require.Zero(t, errno)
	_, errno = h.Write(ctx, []byte("def"), 3)
	require.Zero(t, errno)

	// Flush finalizes; the Release that follows is a no-op.
	require.Zero(t, h.Flush(ctx))
	require.Zero(t, h.Release(ctx))

	info, err := fs.session.Stat(ctx, home+"/c.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size)

	_, errno = h.Write(ctx, []byte("x"), 6)
	assert.Equal(t, syscall.EBADF, errno)
	assert.Zero(t, fs.session.OpenDescriptors())
}
