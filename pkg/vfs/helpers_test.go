package vfs

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/catalog/local"
	contentmemory "github.com/marmos91/catalogfs/pkg/content/memory"
	metadatamemory "github.com/marmos91/catalogfs/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testHome = "/tempZone/home/alice"

var (
	testEnv   = catalog.Env{Host: "localhost", Port: 1247, User: "alice", Zone: "tempZone", DefaultResource: "demoResc"}
	testCreds = catalog.Credentials{Password: "secret"}
)

func newTestEngine(t *testing.T) *local.Engine {
	t.Helper()
	ctx := context.Background()

	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	e, err := local.NewEngine(ctx, local.Config{
		Zone:            "tempZone",
		Host:            "localhost",
		Port:            1247,
		DefaultResource: "demoResc",
		BcryptCost:      bcrypt.MinCost,
		Users:           []local.User{{Name: "alice", Password: "secret"}},
	}, metadatamemory.NewMemoryMetadataStore(), store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// newTestSession returns a connected session over a fresh local engine.
func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	return newSessionOver(t, newTestEngine(t), opts)
}

func newSessionOver(t *testing.T, cat catalog.Catalog, opts Options) *Session {
	t.Helper()
	s := NewSession(cat, StaticEnv(testEnv, testCreds), opts)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Destroy(context.Background()) })
	return s
}

// createObject creates an empty data object named name in the working
// directory.
func createObject(t *testing.T, s *Session, name string, data string) {
	t.Helper()
	ctx := context.Background()

	fd, err := s.Open(ctx, name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	require.NoError(t, err)
	if data != "" {
		n, err := s.Write(ctx, fd, []byte(data))
		require.NoError(t, err)
		require.Equal(t, len(data), n)
	}
	require.NoError(t, s.Close(ctx, fd))
}

func requireCode(t *testing.T, want Code, err error) {
	t.Helper()
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok, "expected *vfs.Error, got %T: %v", err, err)
	assert.Equal(t, want, code, "error: %v", err)
}

// ============================================================================
// Catalog wrappers
// ============================================================================

// wrapCatalog decorates every connection the inner catalog hands out.
type wrapCatalog struct {
	catalog.Catalog
	wrap func(catalog.Conn) catalog.Conn
}

func (c *wrapCatalog) Connect(ctx context.Context, env catalog.Env) (catalog.Conn, error) {
	conn, err := c.Catalog.Connect(ctx, env)
	if err != nil {
		return nil, err
	}
	return c.wrap(conn), nil
}

// handleCountingConn tracks collection handles that are open.
type handleCountingConn struct {
	catalog.Conn
	open int
}

func (c *handleCountingConn) OpenCollection(ctx context.Context, p string) (catalog.CollectionHandle, error) {
	h, err := c.Conn.OpenCollection(ctx, p)
	if err == nil {
		c.open++
	}
	return h, err
}

func (c *handleCountingConn) CloseCollection(ctx context.Context, h catalog.CollectionHandle) error {
	err := c.Conn.CloseCollection(ctx, h)
	if err == nil {
		c.open--
	}
	return err
}

// failingReadConn fails every ReadNext.
type failingReadConn struct {
	catalog.Conn
}

func (c *failingReadConn) ReadNext(ctx context.Context, h catalog.CollectionHandle) (*catalog.Entry, error) {
	return nil, catalog.NewError(catalog.CodeBadHandle, "handle invalidated", "")
}

// fixedDescriptorConn reports the same descriptor for every open, as a
// misbehaving catalog would. Underlying descriptors are closed newest first.
type fixedDescriptorConn struct {
	catalog.Conn
	fd     catalog.Descriptor
	inner  []catalog.Descriptor
	closed []catalog.Descriptor
}

func (c *fixedDescriptorConn) OpenObject(ctx context.Context, p string, flags int, mode uint32, hint string) (catalog.Descriptor, error) {
	d, err := c.Conn.OpenObject(ctx, p, flags, mode, hint)
	if err != nil {
		return 0, err
	}
	c.inner = append(c.inner, d)
	return c.fd, nil
}

func (c *fixedDescriptorConn) WriteObject(ctx context.Context, d catalog.Descriptor, data []byte) (int, error) {
	if len(c.inner) == 0 {
		return 0, catalog.NewError(catalog.CodeBadHandle, "no open descriptor", "")
	}
	return c.Conn.WriteObject(ctx, c.inner[len(c.inner)-1], data)
}

func (c *fixedDescriptorConn) CloseObject(ctx context.Context, d catalog.Descriptor) error {
	c.closed = append(c.closed, d)
	if len(c.inner) == 0 {
		return errors.New("no open descriptor")
	}
	last := c.inner[len(c.inner)-1]
	c.inner = c.inner[:len(c.inner)-1]
	return c.Conn.CloseObject(ctx, last)
}
