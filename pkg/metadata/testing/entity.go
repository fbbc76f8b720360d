package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Create Tests
// ============================================================================

func (suite *StoreTestSuite) RunCreateTests(t *testing.T) {
	t.Run("RoundTripsAllFields", suite.testCreateRoundTrip)
	t.Run("ZeroTimesStayZero", suite.testCreateZeroTimes)
	t.Run("RootWithoutParent", suite.testCreateRoot)
	t.Run("ErrorAlreadyExists", suite.testCreateAlreadyExists)
	t.Run("ErrorMissingParent", suite.testCreateMissingParent)
	t.Run("ErrorParentIsDataObject", suite.testCreateParentIsDataObject)
	t.Run("ErrorInvalidPath", suite.testCreateInvalidPath)
	t.Run("GetNotFound", suite.testGetNotFound)
}

func (suite *StoreTestSuite) testCreateRoundTrip(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()
	ctx := context.Background()

	mustCreateTree(t, store)
	obj := NewDataObject("/zone/home/notes.txt", 42)
	obj.Checksum = "blake3:abcd"
	mustCreate(t, store, obj)

	got, err := store.Get(ctx, "/zone/home/notes.txt")
	require.NoError(t, err)

	assert.Equal(t, obj.Path, got.Path)
	assert.Equal(t, catalog.KindDataObject, got.Kind)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, uint32(0644), got.Mode)
	assert.Equal(t, "alice", got.OwnerName)
	assert.Equal(t, "zone", got.OwnerZone)
	assert.True(t, obj.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, obj.ModifiedAt.Equal(got.ModifiedAt))
	assert.Equal(t, obj.RemoteID, got.RemoteID)
	assert.Equal(t, obj.ContentID, got.ContentID)
	assert.Equal(t, "blake3:abcd", got.Checksum)
	assert.Equal(t, "demoResc", got.Resource)
}

func (suite *StoreTestSuite) testCreateZeroTimes(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	obj := NewDataObject("/zone/empty", 0)
	obj.CreatedAt = time.Time{}
	obj.ModifiedAt = time.Time{}
	mustCreate(t, store, obj)

	got, err := store.Get(context.Background(), "/zone/empty")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.IsZero())
	assert.True(t, got.ModifiedAt.IsZero())
}

func (suite *StoreTestSuite) testCreateRoot(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreate(t, store, NewCollection("/"))

	got, err := store.Get(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindCollection, got.Kind)
}

func (suite *StoreTestSuite) testCreateAlreadyExists(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	err := store.Create(context.Background(), NewCollection("/zone/home"))
	AssertErrorCode(t, metadata.ErrAlreadyExists, err)
	assert.True(t, metadata.IsAlreadyExists(err))
}

func (suite *StoreTestSuite) testCreateMissingParent(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	err := store.Create(context.Background(), NewCollection("/zone/missing/child"))
	AssertErrorCode(t, metadata.ErrNotFound, err)

	_, err = store.Get(context.Background(), "/zone/missing/child")
	AssertErrorCode(t, metadata.ErrNotFound, err, "failed create must not leave an entity behind")
}

func (suite *StoreTestSuite) testCreateParentIsDataObject(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	mustCreate(t, store, NewDataObject("/zone/file", 1))

	err := store.Create(context.Background(), NewDataObject("/zone/file/nested", 1))
	AssertErrorCode(t, metadata.ErrNotCollection, err)
}

func (suite *StoreTestSuite) testCreateInvalidPath(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	for _, p := range []string{"", "relative", "/zone/", "/zone/../zone", "/zone//home"} {
		err := store.Create(context.Background(), NewCollection(p))
		AssertErrorCode(t, metadata.ErrInvalidArgument, err, "path %q", p)
	}
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	_, err := store.Get(context.Background(), "/nope")
	AssertErrorCode(t, metadata.ErrNotFound, err)
	assert.True(t, metadata.IsNotFound(err))
}

// ============================================================================
// Update Tests
// ============================================================================

func (suite *StoreTestSuite) RunUpdateTests(t *testing.T) {
	t.Run("ReplacesFields", suite.testUpdateReplaces)
	t.Run("ErrorNotFound", suite.testUpdateNotFound)
	t.Run("ReturnedEntityIsACopy", suite.testGetReturnsCopy)
}

func (suite *StoreTestSuite) testUpdateReplaces(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()
	ctx := context.Background()

	mustCreateTree(t, store)
	obj := NewDataObject("/zone/data", 0)
	mustCreate(t, store, obj)

	obj.Size = 1024
	obj.Checksum = "blake3:ff"
	obj.ModifiedAt = obj.ModifiedAt.Add(time.Hour)
	require.NoError(t, store.Update(ctx, obj))

	got, err := store.Get(ctx, "/zone/data")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, "blake3:ff", got.Checksum)
	assert.True(t, obj.ModifiedAt.Equal(got.ModifiedAt))
}

func (suite *StoreTestSuite) testUpdateNotFound(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	err := store.Update(context.Background(), NewDataObject("/zone/ghost", 1))
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

func (suite *StoreTestSuite) testGetReturnsCopy(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()
	ctx := context.Background()

	mustCreateTree(t, store)
	mustCreate(t, store, NewDataObject("/zone/data", 7))

	got, err := store.Get(ctx, "/zone/data")
	require.NoError(t, err)
	got.Size = 99

	again, err := store.Get(ctx, "/zone/data")
	require.NoError(t, err)
	assert.Equal(t, int64(7), again.Size)
}

// ============================================================================
// Delete Tests
// ============================================================================

func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("RemovesEntityAndChildLink", suite.testDeleteRemoves)
	t.Run("AbsentIsNoOp", suite.testDeleteAbsent)
	t.Run("RecreateAfterDelete", suite.testDeleteRecreate)
}

func (suite *StoreTestSuite) testDeleteRemoves(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()
	ctx := context.Background()

	mustCreateTree(t, store)
	mustCreate(t, store, NewDataObject("/zone/home/a", 1), NewDataObject("/zone/home/b", 1))

	require.NoError(t, store.Delete(ctx, "/zone/home/a"))

	_, err := store.Get(ctx, "/zone/home/a")
	AssertErrorCode(t, metadata.ErrNotFound, err)

	children, err := store.Children(ctx, "/zone/home")
	require.NoError(t, err)
	assert.Equal(t, []string{"/zone/home/b"}, paths(children))
}

func (suite *StoreTestSuite) testDeleteAbsent(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	assert.NoError(t, store.Delete(context.Background(), "/zone/never"))
}

func (suite *StoreTestSuite) testDeleteRecreate(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()
	ctx := context.Background()

	mustCreateTree(t, store)
	mustCreate(t, store, NewCollection("/zone/tmp"))
	require.NoError(t, store.Delete(ctx, "/zone/tmp"))
	mustCreate(t, store, NewDataObject("/zone/tmp", 3))

	got, err := store.Get(ctx, "/zone/tmp")
	require.NoError(t, err)
	assert.Equal(t, catalog.KindDataObject, got.Kind)
}

// ============================================================================
// Children Tests
// ============================================================================

func (suite *StoreTestSuite) RunChildrenTests(t *testing.T) {
	t.Run("SortedByName", suite.testChildrenSorted)
	t.Run("EmptyCollection", suite.testChildrenEmpty)
	t.Run("DoesNotLeakSiblingPrefix", suite.testChildrenSiblingPrefix)
	t.Run("ErrorNotFound", suite.testChildrenNotFound)
}

func (suite *StoreTestSuite) testChildrenSorted(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	mustCreate(t, store,
		NewDataObject("/zone/home/zeta", 1),
		NewCollection("/zone/home/alpha"),
		NewDataObject("/zone/home/mid", 1),
	)

	children, err := store.Children(context.Background(), "/zone/home")
	require.NoError(t, err)
	assert.Equal(t, []string{"/zone/home/alpha", "/zone/home/mid", "/zone/home/zeta"}, paths(children))
	assert.Equal(t, catalog.KindCollection, children[0].Kind)
}

func (suite *StoreTestSuite) testChildrenEmpty(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	children, err := store.Children(context.Background(), "/zone/home")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func (suite *StoreTestSuite) testChildrenSiblingPrefix(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	mustCreate(t, store,
		NewCollection("/zone/a"),
		NewCollection("/zone/ab"),
		NewDataObject("/zone/a/x", 1),
		NewDataObject("/zone/ab/y", 1),
	)

	children, err := store.Children(context.Background(), "/zone/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/zone/a/x"}, paths(children))
}

func (suite *StoreTestSuite) testChildrenNotFound(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	_, err := store.Children(context.Background(), "/zone/nothing")
	AssertErrorCode(t, metadata.ErrNotFound, err)
}

// ============================================================================
// Scan Tests
// ============================================================================

func (suite *StoreTestSuite) RunScanTests(t *testing.T) {
	t.Run("PrefixInPathOrder", suite.testScanPrefix)
	t.Run("StopsOnCallbackError", suite.testScanStops)
	t.Run("CancelledContext", suite.testScanCancelled)
}

func (suite *StoreTestSuite) testScanPrefix(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	mustCreate(t, store,
		NewCollection("/zone/home/bob"),
		NewDataObject("/zone/home/bob/2.txt", 1),
		NewDataObject("/zone/home/bob/1.txt", 1),
		NewCollection("/zone/trash"),
	)

	var seen []string
	err := store.Scan(context.Background(), "/zone/home", func(e *metadata.Entity) error {
		seen = append(seen, e.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/zone/home",
		"/zone/home/bob",
		"/zone/home/bob/1.txt",
		"/zone/home/bob/2.txt",
	}, seen)
}

func (suite *StoreTestSuite) testScanStops(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	stop := errors.New("stop")
	calls := 0
	err := store.Scan(context.Background(), "/", func(e *metadata.Entity) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func (suite *StoreTestSuite) testScanCancelled(t *testing.T) {
	store := suite.NewStore()
	defer store.Close()

	mustCreateTree(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Scan(ctx, "/", func(e *metadata.Entity) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
