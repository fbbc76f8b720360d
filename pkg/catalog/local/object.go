package local

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/content"
	"github.com/marmos91/catalogfs/pkg/metadata"
	"github.com/zeebo/blake3"
)

// checksumPrefix tags checksums with the algorithm that produced them.
const checksumPrefix = "blake3:"

// openObject is the per-descriptor state of an open data object.
type openObject struct {
	path      string
	contentID content.ContentID

	offset   int64
	writable bool
	append   bool

	// dirty is set by the first write; finalize only rewrites metadata
	// for objects that changed.
	dirty bool
}

// OpenObject opens the data object at p.
//
// Flags follow os.OpenFile: O_CREAT creates a missing object in an existing
// collection, O_EXCL with O_CREAT fails on an existing one, O_TRUNC empties
// a writable object and O_APPEND sends every write to the current end.
func (c *conn) OpenObject(ctx context.Context, p string, flags int, mode uint32, resourceHint string) (catalog.Descriptor, error) {
	if err := c.ready(ctx); err != nil {
		return 0, err
	}
	if err := metadata.ValidatePath(p); err != nil || p == "/" {
		return 0, catalog.NewError(catalog.CodeInvalidArgument, "invalid object path", p)
	}

	access := flags & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	writable := access == os.O_WRONLY || access == os.O_RDWR

	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()

	entity, err := c.engine.meta.Get(ctx, p)
	switch {
	case err == nil:
		if entity.Kind == catalog.KindCollection {
			return 0, catalog.NewError(catalog.CodeIsDirectory, "is a collection", p)
		}
		if flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0 {
			return 0, catalog.NewError(catalog.CodeAlreadyExists, "data object exists", p)
		}
		if flags&os.O_TRUNC != 0 && writable && entity.Size > 0 {
			if err := c.engine.content.Truncate(ctx, content.ContentID(entity.ContentID), 0); err != nil {
				return 0, catalog.NewError(catalog.CodeIO, err.Error(), p)
			}
			entity.Size = 0
			entity.Checksum = ""
			entity.ModifiedAt = c.engine.now()
			if err := c.engine.meta.Update(ctx, entity); err != nil {
				return 0, fromStoreError(err, p)
			}
		}

	case metadata.IsNotFound(err):
		if flags&os.O_CREATE == 0 {
			return 0, catalog.NewError(catalog.CodeNotFound, "data object not found", p)
		}
		entity, err = c.engine.createObject(ctx, p, mode, c.user, resourceHint)
		if err != nil {
			return 0, err
		}

	default:
		return 0, fromStoreError(err, p)
	}

	obj := &openObject{
		path:      p,
		contentID: content.ContentID(entity.ContentID),
		writable:  writable,
		append:    flags&os.O_APPEND != 0,
	}

	d := c.nextDescriptor
	c.nextDescriptor++
	c.objects[d] = obj

	logger.Debug("open object: descriptor=%d path=%s flags=%#x", d, p, flags)
	return d, nil
}

// createObject creates the entity and materializes empty content for it.
// Caller holds e.mu.
func (e *Engine) createObject(ctx context.Context, p string, mode uint32, owner, resourceHint string) (*metadata.Entity, error) {
	if mode&0777 == 0 {
		mode = 0644
	}

	entity := e.newEntity(p, catalog.KindDataObject, mode&0777, owner)
	entity.ContentID = entity.RemoteID
	entity.Resource = resourceHint
	if entity.Resource == "" {
		entity.Resource = e.defaultResource
	}

	if err := e.meta.Create(ctx, entity); err != nil {
		return nil, fromStoreError(err, p)
	}
	if err := e.content.Truncate(ctx, content.ContentID(entity.ContentID), 0); err != nil {
		_ = e.meta.Delete(ctx, p)
		return nil, catalog.NewError(catalog.CodeIO, err.Error(), p)
	}
	return entity, nil
}

func (c *conn) WriteObject(ctx context.Context, d catalog.Descriptor, data []byte) (int, error) {
	if err := c.ready(ctx); err != nil {
		return 0, err
	}

	obj, ok := c.objects[d]
	if !ok {
		return 0, catalog.NewError(catalog.CodeBadHandle, fmt.Sprintf("unknown descriptor %d", d), "")
	}
	if !obj.writable {
		return 0, catalog.NewError(catalog.CodePermissionDenied, "descriptor not open for writing", obj.path)
	}

	if obj.append {
		size, err := c.engine.content.GetContentSize(ctx, obj.contentID)
		if err != nil {
			return 0, catalog.NewError(catalog.CodeIO, err.Error(), obj.path)
		}
		obj.offset = int64(size)
	}

	if err := c.engine.content.WriteAt(ctx, obj.contentID, data, obj.offset); err != nil {
		return 0, catalog.NewError(catalog.CodeIO, err.Error(), obj.path)
	}

	obj.offset += int64(len(data))
	obj.dirty = true
	return len(data), nil
}

// CloseObject finalizes the object's size and checksum and releases the
// descriptor. Descriptor numbers are never handed out again on this
// connection.
func (c *conn) CloseObject(ctx context.Context, d catalog.Descriptor) error {
	if err := c.ready(ctx); err != nil {
		return err
	}

	obj, ok := c.objects[d]
	if !ok {
		return catalog.NewError(catalog.CodeBadHandle, fmt.Sprintf("unknown descriptor %d", d), "")
	}
	delete(c.objects, d)

	return c.engine.finalize(ctx, obj)
}

// finalize records the final size, checksum and modification time of a
// written object.
func (e *Engine) finalize(ctx context.Context, obj *openObject) error {
	if !obj.dirty {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entity, err := e.meta.Get(ctx, obj.path)
	if err != nil {
		return fromStoreError(err, obj.path)
	}

	data, err := content.ReadAll(ctx, e.content, obj.contentID)
	if err != nil {
		return catalog.NewError(catalog.CodeIO, err.Error(), obj.path)
	}

	sum := blake3.Sum256(data)
	entity.Size = int64(len(data))
	entity.Checksum = checksumPrefix + hex.EncodeToString(sum[:])
	entity.ModifiedAt = e.now()

	if err := e.meta.Update(ctx, entity); err != nil {
		return fromStoreError(err, obj.path)
	}

	logger.Debug("finalize object: path=%s size=%d checksum=%s", obj.path, entity.Size, entity.Checksum)
	return nil
}
