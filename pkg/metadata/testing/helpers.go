package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Fixtures
// ============================================================================

var fixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewCollection returns a collection entity owned by alice@zone.
func NewCollection(p string) *metadata.Entity {
	return &metadata.Entity{
		Path:       p,
		Kind:       catalog.KindCollection,
		Mode:       0755,
		OwnerName:  "alice",
		OwnerZone:  "zone",
		CreatedAt:  fixtureTime,
		ModifiedAt: fixtureTime,
		RemoteID:   "coll-" + p,
	}
}

// NewDataObject returns a data object entity owned by alice@zone.
func NewDataObject(p string, size int64) *metadata.Entity {
	return &metadata.Entity{
		Path:       p,
		Kind:       catalog.KindDataObject,
		Size:       size,
		Mode:       0644,
		OwnerName:  "alice",
		OwnerZone:  "zone",
		CreatedAt:  fixtureTime,
		ModifiedAt: fixtureTime,
		RemoteID:   "obj-" + p,
		ContentID:  "content-" + p,
		Resource:   "demoResc",
	}
}

// mustCreate creates every entity in order, failing the test on error.
func mustCreate(t *testing.T, store metadata.Store, entities ...*metadata.Entity) {
	t.Helper()
	for _, e := range entities {
		require.NoError(t, store.Create(context.Background(), e), "create %s", e.Path)
	}
}

// mustCreateTree creates "/", "/zone" and "/zone/home".
func mustCreateTree(t *testing.T, store metadata.Store) {
	t.Helper()
	mustCreate(t, store,
		NewCollection("/"),
		NewCollection("/zone"),
		NewCollection("/zone/home"),
	)
}

// AssertErrorCode asserts that err is a StoreError with the expected code.
func AssertErrorCode(t *testing.T, expected metadata.ErrorCode, err error, msgAndArgs ...any) bool {
	t.Helper()
	if err == nil {
		return assert.Fail(t, "Expected an error but got nil", msgAndArgs...)
	}

	if storeErr, ok := err.(*metadata.StoreError); ok {
		return assert.Equal(t, expected, storeErr.Code, msgAndArgs...)
	}

	return assert.Fail(t, "Expected a *metadata.StoreError", "got %T: %v", err, err)
}

func paths(entities []*metadata.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Path)
	}
	return out
}
