package testing

import (
	"sort"
	"testing"

	"github.com/marmos91/catalogfs/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Listing (content.Lister)
// ============================================================================

// RunListTests is skipped for stores that do not implement content.Lister.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	if _, ok := suite.NewStore().(content.Lister); !ok {
		t.Skip("store does not implement content.Lister")
	}

	t.Run("ListEmpty", suite.testListEmpty)
	t.Run("ListAfterWriteAndDelete", suite.testListAfterWriteAndDelete)
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	lister := suite.NewStore().(content.Lister)

	ids, err := lister.ListContent(testContext())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func (suite *StoreTestSuite) testListAfterWriteAndDelete(t *testing.T) {
	store := suite.NewStore()
	lister := store.(content.Lister)

	a, b, c := generateTestID("list-a"), generateTestID("list-b"), generateTestID("list-c")
	for _, id := range []content.ContentID{a, b, c} {
		mustWriteAt(t, store, id, []byte("x"), 0)
	}
	require.NoError(t, store.Delete(testContext(), b))

	ids, err := lister.ListContent(testContext())
	require.NoError(t, err)

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := []content.ContentID{a, c}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	assert.Equal(t, want, ids)
}
