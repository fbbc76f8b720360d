//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/marmos91/catalogfs/pkg/content"
	contentfs "github.com/marmos91/catalogfs/pkg/content/fs"
	contentmemory "github.com/marmos91/catalogfs/pkg/content/memory"
	"github.com/marmos91/catalogfs/pkg/metadata"
	metadatabadger "github.com/marmos91/catalogfs/pkg/metadata/badger"
	metadatamemory "github.com/marmos91/catalogfs/pkg/metadata/memory"
)

// MetadataStoreType represents the type of metadata store
type MetadataStoreType string

const (
	MetadataMemory MetadataStoreType = "memory"
	MetadataBadger MetadataStoreType = "badger"
)

// ContentStoreType represents the type of content store
type ContentStoreType string

const (
	ContentMemory     ContentStoreType = "memory"
	ContentFilesystem ContentStoreType = "filesystem"
)

// TestConfig holds the store combination for a test run
type TestConfig struct {
	Name          string
	MetadataStore MetadataStoreType
	ContentStore  ContentStoreType
}

// String returns a string representation of the configuration
func (tc *TestConfig) String() string {
	return fmt.Sprintf("%s/%s", tc.MetadataStore, tc.ContentStore)
}

// CreateMetadataStore creates a metadata store based on the configuration
func (tc *TestConfig) CreateMetadataStore(ctx context.Context, tempDir func(string) string) (metadata.Store, error) {
	switch tc.MetadataStore {
	case MetadataMemory:
		return metadatamemory.NewMemoryMetadataStore(), nil

	case MetadataBadger:
		store, err := metadatabadger.NewBadgerMetadataStore(ctx, metadatabadger.BadgerMetadataStoreConfig{
			DBPath: filepath.Join(tempDir("catalogfs-badger-*"), "metadata"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %s", tc.MetadataStore)
	}
}

// CreateContentStore creates a content store based on the configuration
func (tc *TestConfig) CreateContentStore(ctx context.Context, tempDir func(string) string) (content.Store, error) {
	switch tc.ContentStore {
	case ContentMemory:
		return contentmemory.NewMemoryContentStore(ctx)

	case ContentFilesystem:
		store, err := contentfs.NewFSContentStore(ctx, tempDir("catalogfs-content-*"))
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown content store type: %s", tc.ContentStore)
	}
}

// AllConfigurations returns all test configurations to run
func AllConfigurations() []*TestConfig {
	return []*TestConfig{
		{Name: "memory-memory", MetadataStore: MetadataMemory, ContentStore: ContentMemory},
		{Name: "memory-filesystem", MetadataStore: MetadataMemory, ContentStore: ContentFilesystem},
		{Name: "badger-filesystem", MetadataStore: MetadataBadger, ContentStore: ContentFilesystem},
	}
}
