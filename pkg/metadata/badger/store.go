package badger

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// Suitable for catalogs that must survive restarts. Entity records are keyed
// by catalog path, and a separate children index makes collection listings a
// single prefix scan (see keys.go).
//
// Thread Safety:
// BadgerDB transactions are safe for concurrent use; conflicting writes are
// detected by Badger and surfaced as ErrIOError.
type BadgerMetadataStore struct {
	db *badger.DB
}

// BadgerMetadataStoreConfig configures a BadgerMetadataStore.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory holding the database files
	DBPath string

	// InMemory runs Badger without touching disk (tests)
	InMemory bool

	// BlockCacheSizeMB and IndexCacheSizeMB size Badger's caches.
	// Zero uses 64MB / 32MB.
	BlockCacheSizeMB int64
	IndexCacheSizeMB int64
}

// NewBadgerMetadataStore opens (or creates) the database at config.DBPath.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger metadata store: db path is required")
		}
		opts = badger.DefaultOptions(config.DBPath)
	}

	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None) // records are small

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	logger.Debug("badger metadata store opened: path=%s in_memory=%v", config.DBPath, config.InMemory)
	return &BadgerMetadataStore{db: db}, nil
}

func (s *BadgerMetadataStore) Get(ctx context.Context, path string) (*metadata.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity *metadata.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entity, err = getEntity(txn, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *BadgerMetadataStore) Create(ctx context.Context, entity *metadata.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := metadata.ValidatePath(entity.Path); err != nil {
		return err
	}

	value, err := encodeEntity(entity)
	if err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyEntity(entity.Path)); err == nil {
			return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "entity already exists", Path: entity.Path}
		} else if err != badger.ErrKeyNotFound {
			return ioError("get entity", entity.Path, err)
		}

		if entity.Path != "/" {
			parent, err := getEntity(txn, entity.Parent())
			if metadata.IsNotFound(err) {
				return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "parent collection not found", Path: entity.Parent()}
			} else if err != nil {
				return err
			}
			if parent.Kind != catalog.KindCollection {
				return &metadata.StoreError{Code: metadata.ErrNotCollection, Message: "parent is not a collection", Path: parent.Path}
			}

			if err := txn.Set(keyChild(parent.Path, entity.Name()), []byte(entity.Path)); err != nil {
				return ioError("set child", entity.Path, err)
			}
		}

		if err := txn.Set(keyEntity(entity.Path), value); err != nil {
			return ioError("set entity", entity.Path, err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) Update(ctx context.Context, entity *metadata.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := encodeEntity(entity)
	if err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyEntity(entity.Path)); err == badger.ErrKeyNotFound {
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "entity not found", Path: entity.Path}
		} else if err != nil {
			return ioError("get entity", entity.Path, err)
		}

		if err := txn.Set(keyEntity(entity.Path), value); err != nil {
			return ioError("set entity", entity.Path, err)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		entity, err := getEntity(txn, path)
		if metadata.IsNotFound(err) {
			return nil
		} else if err != nil {
			return err
		}

		if err := txn.Delete(keyEntity(path)); err != nil {
			return ioError("delete entity", path, err)
		}
		if path != "/" {
			if err := txn.Delete(keyChild(entity.Parent(), entity.Name())); err != nil {
				return ioError("delete child", path, err)
			}
		}
		return nil
	})
}

func (s *BadgerMetadataStore) Children(ctx context.Context, path string) ([]*metadata.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*metadata.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getEntity(txn, path); metadata.IsNotFound(err) {
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "collection not found", Path: path}
		} else if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = keyChildPrefix(path)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Child keys sort by name, so the listing comes out ordered.
		for it.Rewind(); it.Valid(); it.Next() {
			var childPath string
			if err := it.Item().Value(func(val []byte) error {
				childPath = string(val)
				return nil
			}); err != nil {
				return ioError("read child", path, err)
			}

			child, err := getEntity(txn, childPath)
			if err != nil {
				return err
			}
			out = append(out, child)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerMetadataStore) Scan(ctx context.Context, prefix string, fn func(*metadata.Entity) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyEntity(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if n%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++

			var entity *metadata.Entity
			if err := it.Item().Value(func(val []byte) error {
				var err error
				entity, err = decodeEntity(val)
				return err
			}); err != nil {
				return err
			}
			if err := fn(entity); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, mapping Badger conflicts to
// store errors.
func (s *BadgerMetadataStore) update(fn func(txn *badger.Txn) error) error {
	err := s.db.Update(fn)
	if err == badger.ErrConflict {
		return &metadata.StoreError{Code: metadata.ErrIOError, Message: "concurrent modification, retry"}
	}
	return err
}

func getEntity(txn *badger.Txn, path string) (*metadata.Entity, error) {
	item, err := txn.Get(keyEntity(path))
	if err == badger.ErrKeyNotFound {
		return nil, &metadata.StoreError{Code: metadata.ErrNotFound, Message: "entity not found", Path: path}
	}
	if err != nil {
		return nil, ioError("get entity", path, err)
	}

	var entity *metadata.Entity
	err = item.Value(func(val []byte) error {
		entity, err = decodeEntity(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func ioError(op, path string, err error) error {
	return &metadata.StoreError{
		Code:    metadata.ErrIOError,
		Message: fmt.Sprintf("badger %s failed: %v", op, err),
		Path:    path,
	}
}
