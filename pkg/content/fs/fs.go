package fs

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/content"
)

// FSContentStore implements content.Store on the local filesystem.
//
// Each ContentID is stored as one file directly under basePath. File names
// are the hex encoding of the ID, so any ID maps to a safe, flat name.
//
// Thread Safety:
// Writes to the same ContentID are serialized with a per-ID mutex; the OS
// handles concurrency between different IDs.
type FSContentStore struct {
	basePath string

	locksMu sync.Mutex
	locks   map[content.ContentID]*sync.Mutex
}

// NewFSContentStore creates the base directory if needed and returns a store
// rooted at it.
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if basePath == "" {
		return nil, fmt.Errorf("base path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	logger.Debug("fs content store ready: path=%s", basePath)
	return &FSContentStore{
		basePath: basePath,
		locks:    make(map[content.ContentID]*sync.Mutex),
	}, nil
}

func (r *FSContentStore) getFilePath(id content.ContentID) string {
	return filepath.Join(r.basePath, hex.EncodeToString([]byte(id)))
}

// lockFile returns the unlock function for id's write mutex.
func (r *FSContentStore) lockFile(id content.ContentID) func() {
	r.locksMu.Lock()
	mu, ok := r.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[id] = mu
	}
	r.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (r *FSContentStore) ReadContent(ctx context.Context, id content.ContentID) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(r.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}

	return file, nil
}

func (r *FSContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(r.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}

	return uint64(info.Size()), nil
}

func (r *FSContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(r.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check content existence: %w", err)
	}

	return true, nil
}

// WriteAt writes data at offset. Large writes are split into chunks so a
// cancelled context stops the write between chunks.
func (r *FSContentStore) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.Validate(id, offset); err != nil {
		return err
	}

	unlock := r.lockFile(id)
	defer unlock()

	file, err := os.OpenFile(r.getFilePath(id), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: %w", err)
	}
	defer file.Close()

	const chunkSize = 256 * 1024
	for start := 0; start < len(data); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+chunkSize, len(data))
		if _, err := file.WriteAt(data[start:end], offset+int64(start)); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}

	return file.Sync()
}

func (r *FSContentStore) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.Validate(id, 0); err != nil {
		return err
	}

	unlock := r.lockFile(id)
	defer unlock()

	file, err := os.OpenFile(r.getFilePath(id), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for truncate: %w", err)
	}
	defer file.Close()

	if err := file.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to truncate content: %w", err)
	}
	return nil
}

func (r *FSContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := r.lockFile(id)
	defer unlock()

	if err := os.Remove(r.getFilePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// ListContent decodes the file names under the base directory. Files whose
// name is not valid hex were not written by the store and are skipped.
func (r *FSContentStore) ListContent(ctx context.Context) ([]content.ContentID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list content directory: %w", err)
	}

	ids := make([]content.ContentID, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		raw, err := hex.DecodeString(entry.Name())
		if err != nil {
			logger.Debug("fs content store: skipping foreign file %s", entry.Name())
			continue
		}
		ids = append(ids, content.ContentID(raw))
	}
	return ids, nil
}
