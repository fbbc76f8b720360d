// Package metadata stores the catalog's namespace: one Entity per collection
// or data object, keyed by absolute catalog path.
//
// The store knows nothing about connections, handles or authentication;
// those live in the catalog engine (pkg/catalog/local). Data object bytes
// live in a content store (pkg/content), referenced by Entity.ContentID.
//
// Implementations:
//   - memory: maps guarded by a RWMutex, ephemeral
//   - badger: BadgerDB, persistent across restarts
package metadata

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/marmos91/catalogfs/pkg/catalog"
)

// Store provides namespace persistence for the catalog engine.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Get returns the entity at path.
	// Returns StoreError{ErrNotFound} when absent.
	Get(ctx context.Context, path string) (*Entity, error)

	// Create stores a new entity. The parent collection must already exist
	// (except for the root "/").
	// Returns ErrAlreadyExists if the path is taken, ErrNotFound if the
	// parent is missing.
	Create(ctx context.Context, entity *Entity) error

	// Update replaces an existing entity.
	// Returns ErrNotFound if nothing lives at entity.Path.
	Update(ctx context.Context, entity *Entity) error

	// Delete removes the entity at path. Deleting an absent path succeeds.
	Delete(ctx context.Context, path string) error

	// Children returns the direct children of the collection at path,
	// sorted by name.
	Children(ctx context.Context, path string) ([]*Entity, error)

	// Scan calls fn for every entity whose path starts with prefix, in
	// path order. Returning an error from fn stops the scan.
	Scan(ctx context.Context, prefix string, fn func(*Entity) error) error

	// Close releases the store's resources.
	Close() error
}

// Entity is one collection or data object.
type Entity struct {
	Path       string
	Kind       catalog.Kind
	Size       int64
	Mode       uint32
	OwnerName  string
	OwnerZone  string
	CreatedAt  time.Time
	ModifiedAt time.Time

	// RemoteID is the catalog-wide identifier handed out at creation.
	RemoteID string

	// ContentID locates a data object's bytes in the content store.
	ContentID string

	Checksum string
	Resource string
}

// Name returns the last segment of the entity's path.
func (e *Entity) Name() string {
	return path.Base(e.Path)
}

// Parent returns the path of the collection holding the entity.
func (e *Entity) Parent() string {
	return ParentOf(e.Path)
}

// Clone returns a copy the caller may mutate freely.
func (e *Entity) Clone() *Entity {
	c := *e
	return &c
}

// Metadata converts the entity to what the catalog reports from Stat.
func (e *Entity) Metadata() *catalog.EntityMetadata {
	return &catalog.EntityMetadata{
		Size:       e.Size,
		Kind:       e.Kind,
		Mode:       e.Mode,
		OwnerName:  e.OwnerName,
		OwnerZone:  e.OwnerZone,
		CreatedAt:  e.CreatedAt,
		ModifiedAt: e.ModifiedAt,
		RemoteID:   e.RemoteID,
		Checksum:   e.Checksum,
		Resource:   e.Resource,
	}
}

// ParentOf returns the parent path of p. The parent of "/" is "/".
func ParentOf(p string) string {
	return path.Dir(p)
}

// ValidatePath checks that p is an absolute, clean catalog path.
func ValidatePath(p string) error {
	if p == "" || !strings.HasPrefix(p, "/") || path.Clean(p) != p {
		return &StoreError{Code: ErrInvalidArgument, Message: "path must be absolute and clean", Path: p}
	}
	return nil
}
