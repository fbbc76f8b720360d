// Package content stores the bytes of data objects.
//
// The content store manages only raw data. It does NOT manage:
//   - Entity metadata (size, owner, checksum) → handled by metadata.Store
//   - The collection hierarchy → handled by metadata.Store
//   - Descriptors and write offsets → handled by the catalog engine
//
// Entities reference their bytes through metadata.Entity.ContentID; the
// catalog engine is the only caller that translates between the two.
package content

import (
	"context"
	"io"
)

// ContentID is an opaque identifier for a blob of content.
//
// The catalog engine hands out UUIDs. Implementations may map the ID to
// whatever key their backend needs (hex file name, prefixed S3 key) but must
// treat it as opaque otherwise.
type ContentID string

// Store provides read, write and delete access to content.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same ContentID are last-write-wins; the catalog
// engine never has two writers on one object.
type Store interface {
	// ReadContent returns a reader for the content. The caller closes it.
	// Returns ErrContentNotFound if nothing was ever written under id.
	ReadContent(ctx context.Context, id ContentID) (io.ReadCloser, error)

	// GetContentSize returns the size of the content in bytes.
	GetContentSize(ctx context.Context, id ContentID) (uint64, error)

	// ContentExists reports whether content exists. A missing id is
	// (false, nil), not an error.
	ContentExists(ctx context.Context, id ContentID) (bool, error)

	// WriteAt writes data at offset, creating the content if needed and
	// zero-filling any gap past the current end.
	WriteAt(ctx context.Context, id ContentID, data []byte, offset int64) error

	// Truncate resizes the content, zero-extending when growing. Missing
	// content is created at the requested size.
	Truncate(ctx context.Context, id ContentID, size uint64) error

	// Delete removes the content. Deleting missing content succeeds.
	Delete(ctx context.Context, id ContentID) error
}

// Lister is implemented by stores that can enumerate everything they hold.
// The garbage collector needs it to find content no entity references.
type Lister interface {
	// ListContent returns every ContentID in the store, in no particular
	// order.
	ListContent(ctx context.Context) ([]ContentID, error)
}

// ReadAll reads the whole content identified by id.
func ReadAll(ctx context.Context, store Store, id ContentID) ([]byte, error) {
	reader, err := store.ReadContent(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}
