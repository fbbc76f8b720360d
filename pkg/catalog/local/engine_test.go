package local

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"testing"

	"github.com/marmos91/catalogfs/pkg/catalog"
	contentmemory "github.com/marmos91/catalogfs/pkg/content/memory"
	metadatamemory "github.com/marmos91/catalogfs/pkg/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/bcrypt"
)

var testEnv = catalog.Env{Host: "localhost", Port: 1247, User: "alice", Zone: "tempZone"}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	e, err := NewEngine(ctx, Config{
		Zone:            "tempZone",
		Host:            "localhost",
		Port:            1247,
		DefaultResource: "demoResc",
		BcryptCost:      bcrypt.MinCost,
		Users: []User{
			{Name: "alice", Password: "secret"},
			{Name: "bob", Password: "hunter2"},
		},
	}, metadatamemory.NewMemoryMetadataStore(), store)
	require.NoError(t, err)
	return e
}

func connect(t *testing.T, e *Engine) catalog.Conn {
	t.Helper()
	ctx := context.Background()
	c, err := e.Connect(ctx, testEnv)
	require.NoError(t, err)
	require.NoError(t, c.Authenticate(ctx, catalog.Credentials{User: "alice", Zone: "tempZone", Password: "secret"}))
	return c
}

func requireCode(t *testing.T, want catalog.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	code, ok := catalog.CodeOf(err)
	require.True(t, ok, "expected *catalog.Error, got %T: %v", err, err)
	assert.Equal(t, want, code, "error: %v", err)
}

// ============================================================================
// Connection & Authentication
// ============================================================================

func TestEngine_BootstrapsHomes(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()

	for _, p := range []string{"/", "/tempZone", "/tempZone/home", "/tempZone/home/alice", "/tempZone/home/bob"} {
		n, err := c.CountWherePathEquals(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, p)
	}

	md, err := c.Stat(ctx, "/tempZone/home/alice")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindCollection, md.Kind)
	assert.Equal(t, "alice", md.OwnerName)
	assert.NotEmpty(t, md.RemoteID)
}

func TestEngine_BootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	meta := metadatamemory.NewMemoryMetadataStore()
	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	cfg := Config{Zone: "z", BcryptCost: bcrypt.MinCost, Users: []User{{Name: "u", Password: "p"}}}
	_, err = NewEngine(ctx, cfg, meta, store)
	require.NoError(t, err)
	_, err = NewEngine(ctx, cfg, meta, store)
	require.NoError(t, err)
}

func TestEngine_ConnectErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		env  catalog.Env
	}{
		{"WrongHost", catalog.Env{Host: "elsewhere", Port: 1247, Zone: "tempZone"}},
		{"WrongPort", catalog.Env{Host: "localhost", Port: 9999, Zone: "tempZone"}},
		{"WrongZone", catalog.Env{Host: "localhost", Port: 1247, Zone: "otherZone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Connect(ctx, tt.env)
			requireCode(t, catalog.CodeConnection, err)
		})
	}

	require.NoError(t, e.Close())
	_, err := e.Connect(ctx, testEnv)
	requireCode(t, catalog.CodeConnection, err)
}

func TestEngine_Authenticate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	c, err := e.Connect(ctx, testEnv)
	require.NoError(t, err)

	_, err = c.Stat(ctx, "/")
	requireCode(t, catalog.CodeNotConnected, err)

	err = c.Authenticate(ctx, catalog.Credentials{User: "alice", Zone: "tempZone", Password: "wrong"})
	requireCode(t, catalog.CodeAuthFailed, err)

	err = c.Authenticate(ctx, catalog.Credentials{User: "mallory", Zone: "tempZone", Password: "secret"})
	requireCode(t, catalog.CodeAuthFailed, err)

	require.NoError(t, c.Authenticate(ctx, catalog.Credentials{User: "bob", Zone: "tempZone", Password: "hunter2"}))
	_, err = c.Stat(ctx, "/")
	assert.NoError(t, err)
}

func TestEngine_PasswordHashConfig(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	store, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	e, err := NewEngine(ctx, Config{
		Zone:  "z",
		Users: []User{{Name: "carol", PasswordHash: string(hash)}},
	}, metadatamemory.NewMemoryMetadataStore(), store)
	require.NoError(t, err)

	c, err := e.Connect(ctx, catalog.Env{Zone: "z", User: "carol"})
	require.NoError(t, err)
	assert.NoError(t, c.Authenticate(ctx, catalog.Credentials{User: "carol", Password: "pw"}))
}

func TestEngine_Disconnect(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()

	require.NoError(t, c.Disconnect(ctx))
	requireCode(t, catalog.CodeNotConnected, c.Disconnect(ctx))

	_, err := c.Stat(ctx, "/")
	requireCode(t, catalog.CodeNotConnected, err)
}

// ============================================================================
// Collections
// ============================================================================

func TestEngine_MakeAndRemoveCollection(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	home := testEnv.HomePath()

	require.NoError(t, c.MakeCollection(ctx, home+"/docs"))
	requireCode(t, catalog.CodeAlreadyExists, c.MakeCollection(ctx, home+"/docs"))
	requireCode(t, catalog.CodeNotFound, c.MakeCollection(ctx, home+"/missing/child"))
	requireCode(t, catalog.CodeInvalidArgument, c.MakeCollection(ctx, "relative"))

	md, err := c.Stat(ctx, home+"/docs")
	require.NoError(t, err)
	assert.Equal(t, "alice", md.OwnerName)

	require.NoError(t, c.MakeCollection(ctx, home+"/docs/inner"))
	requireCode(t, catalog.CodeNotEmpty, c.RemoveCollection(ctx, home+"/docs"))
	require.NoError(t, c.RemoveCollection(ctx, home+"/docs/inner"))
	require.NoError(t, c.RemoveCollection(ctx, home+"/docs"))

	requireCode(t, catalog.CodeNotFound, c.RemoveCollection(ctx, home+"/docs"))
	requireCode(t, catalog.CodeInvalidArgument, c.RemoveCollection(ctx, "/"))
}

func TestEngine_RemoveCollectionRejectsDataObject(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()

	d, err := c.OpenObject(ctx, testEnv.HomePath()+"/f", os.O_CREATE|os.O_WRONLY, 0644, "")
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	requireCode(t, catalog.CodeNotDirectory, c.RemoveCollection(ctx, testEnv.HomePath()+"/f"))
	requireCode(t, catalog.CodeNotDirectory, c.MakeCollection(ctx, testEnv.HomePath()+"/f/sub"))
}

func TestEngine_EnumerateCollection(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	home := testEnv.HomePath()

	require.NoError(t, c.MakeCollection(ctx, home+"/b-dir"))
	d, err := c.OpenObject(ctx, home+"/a.txt", os.O_CREATE|os.O_WRONLY, 0644, "")
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	h, err := c.OpenCollection(ctx, home)
	require.NoError(t, err)

	first, err := c.ReadNext(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, catalog.Entry{Kind: catalog.KindDataObject, Name: "a.txt"}, *first)

	second, err := c.ReadNext(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, catalog.Entry{Kind: catalog.KindCollection, Path: home + "/b-dir"}, *second)

	_, err = c.ReadNext(ctx, h)
	assert.True(t, errors.Is(err, catalog.ErrEndOfCollection))

	require.NoError(t, c.CloseCollection(ctx, h))
	_, err = c.ReadNext(ctx, h)
	requireCode(t, catalog.CodeBadHandle, err)
	requireCode(t, catalog.CodeBadHandle, c.CloseCollection(ctx, h))
}

func TestEngine_OpenCollectionErrors(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()

	_, err := c.OpenCollection(ctx, "/nope")
	requireCode(t, catalog.CodeNotFound, err)

	d, err := c.OpenObject(ctx, testEnv.HomePath()+"/file", os.O_CREATE|os.O_WRONLY, 0, "")
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	_, err = c.OpenCollection(ctx, testEnv.HomePath()+"/file")
	requireCode(t, catalog.CodeNotDirectory, err)

	n, err := c.CountWherePathEquals(ctx, testEnv.HomePath()+"/file")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "data objects are not collections")
}

// ============================================================================
// Data Objects
// ============================================================================

func TestEngine_WriteAndFinalize(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	p := testEnv.HomePath() + "/hello.txt"

	d, err := c.OpenObject(ctx, p, os.O_CREATE|os.O_WRONLY, 0600, "")
	require.NoError(t, err)
	assert.Equal(t, catalog.Descriptor(3), d)

	n, err := c.WriteObject(ctx, d, []byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	_, err = c.WriteObject(ctx, d, []byte("world"))
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	md, err := c.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, catalog.KindDataObject, md.Kind)
	assert.Equal(t, int64(11), md.Size)
	assert.Equal(t, uint32(0600), md.Mode)
	assert.Equal(t, "demoResc", md.Resource)

	sum := blake3.Sum256([]byte("hello world"))
	assert.Equal(t, "blake3:"+hex.EncodeToString(sum[:]), md.Checksum)
}

func TestEngine_DescriptorsNeverReused(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	p := testEnv.HomePath() + "/x"

	d1, err := c.OpenObject(ctx, p, os.O_CREATE|os.O_WRONLY, 0644, "")
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d1))

	d2, err := c.OpenObject(ctx, p, os.O_WRONLY, 0644, "")
	require.NoError(t, err)
	assert.Greater(t, d2, d1)

	requireCode(t, catalog.CodeBadHandle, c.CloseObject(ctx, d1))
	_, err = c.WriteObject(ctx, d1, []byte("x"))
	requireCode(t, catalog.CodeBadHandle, err)
}

func TestEngine_OpenFlags(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	p := testEnv.HomePath() + "/data"

	_, err := c.OpenObject(ctx, p, os.O_WRONLY, 0644, "")
	requireCode(t, catalog.CodeNotFound, err)

	d, err := c.OpenObject(ctx, p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644, "fastResc")
	require.NoError(t, err)
	_, err = c.WriteObject(ctx, d, []byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	md, err := c.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "fastResc", md.Resource)

	_, err = c.OpenObject(ctx, p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644, "")
	requireCode(t, catalog.CodeAlreadyExists, err)

	// Append goes to the end regardless of the descriptor offset.
	d, err = c.OpenObject(ctx, p, os.O_WRONLY|os.O_APPEND, 0, "")
	require.NoError(t, err)
	_, err = c.WriteObject(ctx, d, []byte("AB"))
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	md, err = c.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(12), md.Size)

	// Overwrite from offset zero keeps the tail.
	d, err = c.OpenObject(ctx, p, os.O_WRONLY, 0, "")
	require.NoError(t, err)
	_, err = c.WriteObject(ctx, d, []byte("xy"))
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	md, err = c.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(12), md.Size)

	d, err = c.OpenObject(ctx, p, os.O_WRONLY|os.O_TRUNC, 0, "")
	require.NoError(t, err)
	require.NoError(t, c.CloseObject(ctx, d))

	md, err = c.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(0), md.Size)
	assert.Empty(t, md.Checksum)
}

func TestEngine_ReadOnlyDescriptor(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	p := testEnv.HomePath() + "/ro"

	d, err := c.OpenObject(ctx, p, os.O_CREATE|os.O_RDONLY, 0644, "")
	require.NoError(t, err)

	_, err = c.WriteObject(ctx, d, []byte("x"))
	requireCode(t, catalog.CodePermissionDenied, err)
	require.NoError(t, c.CloseObject(ctx, d))
}

func TestEngine_OpenObjectErrors(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()

	_, err := c.OpenObject(ctx, testEnv.HomePath(), os.O_RDONLY, 0, "")
	requireCode(t, catalog.CodeIsDirectory, err)

	_, err = c.OpenObject(ctx, testEnv.HomePath()+"/missing/file", os.O_CREATE|os.O_WRONLY, 0, "")
	requireCode(t, catalog.CodeNotFound, err)

	_, err = c.OpenObject(ctx, "/", os.O_RDONLY, 0, "")
	requireCode(t, catalog.CodeInvalidArgument, err)
}

func TestEngine_DisconnectFinalizesOpenObjects(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	ctx := context.Background()
	p := testEnv.HomePath() + "/pending"

	d, err := c.OpenObject(ctx, p, os.O_CREATE|os.O_WRONLY, 0644, "")
	require.NoError(t, err)
	_, err = c.WriteObject(ctx, d, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, c.Disconnect(ctx))

	c2 := connect(t, e)
	md, err := c2.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), md.Size)
	assert.NotEmpty(t, md.Checksum)
}
