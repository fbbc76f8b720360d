package testing

import (
	"context"
	"testing"

	"github.com/marmos91/catalogfs/pkg/content"
)

// StoreTestSuite is a conformance suite for content.Store implementations.
// It tests the interface contract, not implementation details, making it
// reusable across memory, filesystem and S3 backends.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func() content.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh store for each test.
	NewStore func() content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("WriteOperations", suite.RunWriteTests)
	t.Run("ListOperations", suite.RunListTests)
}

func testContext() context.Context {
	return context.Background()
}
