package memory

import (
	"testing"

	"github.com/marmos91/catalogfs/pkg/metadata"
	storetest "github.com/marmos91/catalogfs/pkg/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func() metadata.Store {
			return NewMemoryMetadataStore()
		},
	}
	suite.Run(t)
}
