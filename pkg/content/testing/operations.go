package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/marmos91/catalogfs/pkg/content"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Basic Operations
// ============================================================================

func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("ReadMissing", suite.testReadMissing)
	t.Run("SizeMissing", suite.testSizeMissing)
	t.Run("ExistsMissing", suite.testExistsMissing)
	t.Run("DeleteMissing", suite.testDeleteMissing)
	t.Run("DeleteRemoves", suite.testDeleteRemoves)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testReadMissing(t *testing.T) {
	store := suite.NewStore()
	_, err := store.ReadContent(testContext(), generateTestID("missing"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testSizeMissing(t *testing.T) {
	store := suite.NewStore()
	_, err := store.GetContentSize(testContext(), generateTestID("missing"))
	AssertErrorIs(t, content.ErrContentNotFound, err)
}

func (suite *StoreTestSuite) testExistsMissing(t *testing.T) {
	store := suite.NewStore()
	assertContentExists(t, store, generateTestID("missing"), false)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.NewStore()
	mustDelete(t, store, generateTestID("missing"))
}

func (suite *StoreTestSuite) testDeleteRemoves(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("delete")

	mustWriteAt(t, store, id, []byte("bye"), 0)
	assertContentExists(t, store, id, true)

	mustDelete(t, store, id)
	assertContentExists(t, store, id, false)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WriteAt(ctx, generateTestID("cancelled"), []byte("x"), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Write Operations
// ============================================================================

func (suite *StoreTestSuite) RunWriteTests(t *testing.T) {
	t.Run("WriteCreates", suite.testWriteCreates)
	t.Run("SequentialAppend", suite.testSequentialAppend)
	t.Run("OverwriteMiddle", suite.testOverwriteMiddle)
	t.Run("SparseGapIsZeroed", suite.testSparseGap)
	t.Run("EmptyWriteAtZeroCreates", suite.testEmptyWrite)
	t.Run("LargeWrite", suite.testLargeWrite)
	t.Run("TruncateShrink", suite.testTruncateShrink)
	t.Run("TruncateGrow", suite.testTruncateGrow)
	t.Run("TruncateMissingCreates", suite.testTruncateMissing)
	t.Run("InvalidArguments", suite.testInvalidArguments)
}

func (suite *StoreTestSuite) testWriteCreates(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("create")

	mustWriteAt(t, store, id, []byte("hello"), 0)
	assertContentEquals(t, store, id, []byte("hello"))
	assertContentSize(t, store, id, 5)
}

func (suite *StoreTestSuite) testSequentialAppend(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("append")

	mustWriteAt(t, store, id, []byte("hello "), 0)
	mustWriteAt(t, store, id, []byte("world"), 6)
	assertContentEquals(t, store, id, []byte("hello world"))
}

func (suite *StoreTestSuite) testOverwriteMiddle(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("overwrite")

	mustWriteAt(t, store, id, []byte("abcdef"), 0)
	mustWriteAt(t, store, id, []byte("XY"), 2)
	assertContentEquals(t, store, id, []byte("abXYef"))
}

func (suite *StoreTestSuite) testSparseGap(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("sparse")

	mustWriteAt(t, store, id, []byte("ab"), 0)
	mustWriteAt(t, store, id, []byte("z"), 5)
	assertContentEquals(t, store, id, []byte{'a', 'b', 0, 0, 0, 'z'})
}

func (suite *StoreTestSuite) testEmptyWrite(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("empty")

	mustWriteAt(t, store, id, nil, 0)
	assertContentExists(t, store, id, true)
	assertContentSize(t, store, id, 0)
}

func (suite *StoreTestSuite) testLargeWrite(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("large")
	data := generateTestData(1<<20 + 17)

	mustWriteAt(t, store, id, data, 0)
	got := mustReadContent(t, store, id)
	assert.True(t, bytes.Equal(data, got), "large content mismatch")
}

func (suite *StoreTestSuite) testTruncateShrink(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("shrink")

	mustWriteAt(t, store, id, []byte("0123456789"), 0)
	mustTruncate(t, store, id, 4)
	assertContentEquals(t, store, id, []byte("0123"))
}

func (suite *StoreTestSuite) testTruncateGrow(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("grow")

	mustWriteAt(t, store, id, []byte("ab"), 0)
	mustTruncate(t, store, id, 4)
	assertContentEquals(t, store, id, []byte{'a', 'b', 0, 0})
}

func (suite *StoreTestSuite) testTruncateMissing(t *testing.T) {
	store := suite.NewStore()
	id := generateTestID("truncate-missing")

	mustTruncate(t, store, id, 0)
	assertContentExists(t, store, id, true)
	assertContentSize(t, store, id, 0)
}

func (suite *StoreTestSuite) testInvalidArguments(t *testing.T) {
	store := suite.NewStore()

	err := store.WriteAt(testContext(), "", []byte("x"), 0)
	AssertErrorIs(t, content.ErrInvalidContentID, err)

	err = store.WriteAt(testContext(), generateTestID("neg"), []byte("x"), -1)
	AssertErrorIs(t, content.ErrInvalidOffset, err)
}
