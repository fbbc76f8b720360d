package local

import (
	"context"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
)

// collectionCursor walks a snapshot of a collection's children taken when
// the collection was opened. Later changes to the collection are not seen.
type collectionCursor struct {
	path    string
	entries []catalog.Entry
	next    int
}

func (c *conn) CountWherePathEquals(ctx context.Context, p string) (int64, error) {
	if err := c.ready(ctx); err != nil {
		return 0, err
	}

	entity, err := c.engine.meta.Get(ctx, p)
	if metadata.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fromStoreError(err, p)
	}
	if entity.Kind != catalog.KindCollection {
		return 0, nil
	}
	return 1, nil
}

func (c *conn) OpenCollection(ctx context.Context, p string) (catalog.CollectionHandle, error) {
	if err := c.ready(ctx); err != nil {
		return 0, err
	}

	entity, err := c.engine.meta.Get(ctx, p)
	if err != nil {
		return 0, fromStoreError(err, p)
	}
	if entity.Kind != catalog.KindCollection {
		return 0, catalog.NewError(catalog.CodeNotDirectory, "not a collection", p)
	}

	children, err := c.engine.meta.Children(ctx, p)
	if err != nil {
		return 0, fromStoreError(err, p)
	}

	entries := make([]catalog.Entry, 0, len(children))
	for _, child := range children {
		if child.Kind == catalog.KindCollection {
			entries = append(entries, catalog.Entry{Kind: catalog.KindCollection, Path: child.Path})
		} else {
			entries = append(entries, catalog.Entry{Kind: child.Kind, Name: child.Name()})
		}
	}

	h := c.nextCollection
	c.nextCollection++
	c.collections[h] = &collectionCursor{path: p, entries: entries}

	logger.Debug("open collection: handle=%d path=%s entries=%d", h, p, len(entries))
	return h, nil
}

func (c *conn) ReadNext(ctx context.Context, h catalog.CollectionHandle) (*catalog.Entry, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	cursor, ok := c.collections[h]
	if !ok {
		return nil, catalog.NewError(catalog.CodeBadHandle, "unknown collection handle", "")
	}
	if cursor.next >= len(cursor.entries) {
		return nil, catalog.ErrEndOfCollection
	}

	entry := cursor.entries[cursor.next]
	cursor.next++
	return &entry, nil
}

func (c *conn) CloseCollection(ctx context.Context, h catalog.CollectionHandle) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if _, ok := c.collections[h]; !ok {
		return catalog.NewError(catalog.CodeBadHandle, "unknown collection handle", "")
	}
	delete(c.collections, h)
	return nil
}

func (c *conn) MakeCollection(ctx context.Context, p string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if err := metadata.ValidatePath(p); err != nil {
		return fromStoreError(err, p)
	}

	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()

	if err := c.engine.meta.Create(ctx, c.engine.newEntity(p, catalog.KindCollection, 0755, c.user)); err != nil {
		return fromStoreError(err, p)
	}

	logger.Debug("make collection: path=%s owner=%s", p, c.user)
	return nil
}

// RemoveCollection removes an empty collection. The root can't be removed.
func (c *conn) RemoveCollection(ctx context.Context, p string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if p == "/" {
		return catalog.NewError(catalog.CodeInvalidArgument, "cannot remove the root collection", p)
	}

	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()

	entity, err := c.engine.meta.Get(ctx, p)
	if err != nil {
		return fromStoreError(err, p)
	}
	if entity.Kind != catalog.KindCollection {
		return catalog.NewError(catalog.CodeNotDirectory, "not a collection", p)
	}

	children, err := c.engine.meta.Children(ctx, p)
	if err != nil {
		return fromStoreError(err, p)
	}
	if len(children) > 0 {
		return catalog.NewError(catalog.CodeNotEmpty, "collection not empty", p)
	}

	if err := c.engine.meta.Delete(ctx, p); err != nil {
		return fromStoreError(err, p)
	}

	logger.Debug("remove collection: path=%s", p)
	return nil
}
