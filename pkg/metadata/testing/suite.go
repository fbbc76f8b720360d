package testing

import (
	"testing"

	"github.com/marmos91/catalogfs/pkg/metadata"
)

// StoreTestSuite is a conformance suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, so every
// backend (memory, badger, ...) runs the same checks.
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func() metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Create", suite.RunCreateTests)
	t.Run("Update", suite.RunUpdateTests)
	t.Run("Delete", suite.RunDeleteTests)
	t.Run("Children", suite.RunChildrenTests)
	t.Run("Scan", suite.RunScanTests)
}
