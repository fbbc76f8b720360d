package memory

import (
	"context"
	"testing"

	"github.com/marmos91/catalogfs/pkg/content"
	contenttesting "github.com/marmos91/catalogfs/pkg/content/testing"
)

// TestMemoryContentStore runs the complete content store suite against the
// MemoryContentStore implementation.
func TestMemoryContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func() content.Store {
			store, err := NewMemoryContentStore(context.Background())
			if err != nil {
				t.Fatalf("Failed to create MemoryContentStore: %v", err)
			}
			return store
		},
	}

	suite.Run(t)
}
