package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
)

// MemoryMetadataStore implements metadata.Store in process memory.
//
// Suitable for tests and for throwaway catalogs; everything is lost when the
// process exits.
//
// Thread Safety:
// All operations are protected by a single read-write mutex.
type MemoryMetadataStore struct {
	mu       sync.RWMutex
	entities map[string]*metadata.Entity

	// children indexes collection path -> child name -> child path
	children map[string]map[string]string
}

// NewMemoryMetadataStore creates an empty store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		entities: make(map[string]*metadata.Entity),
		children: make(map[string]map[string]string),
	}
}

func (s *MemoryMetadataStore) Get(ctx context.Context, path string) (*metadata.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[path]
	if !ok {
		return nil, &metadata.StoreError{Code: metadata.ErrNotFound, Message: "entity not found", Path: path}
	}
	return e.Clone(), nil
}

func (s *MemoryMetadataStore) Create(ctx context.Context, entity *metadata.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := metadata.ValidatePath(entity.Path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[entity.Path]; ok {
		return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "entity already exists", Path: entity.Path}
	}

	if entity.Path != "/" {
		parent, ok := s.entities[entity.Parent()]
		if !ok {
			return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "parent collection not found", Path: entity.Parent()}
		}
		if parent.Kind != catalog.KindCollection {
			return &metadata.StoreError{Code: metadata.ErrNotCollection, Message: "parent is not a collection", Path: parent.Path}
		}

		siblings, ok := s.children[parent.Path]
		if !ok {
			siblings = make(map[string]string)
			s.children[parent.Path] = siblings
		}
		siblings[entity.Name()] = entity.Path
	}

	s.entities[entity.Path] = entity.Clone()
	return nil
}

func (s *MemoryMetadataStore) Update(ctx context.Context, entity *metadata.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[entity.Path]; !ok {
		return &metadata.StoreError{Code: metadata.ErrNotFound, Message: "entity not found", Path: entity.Path}
	}
	s.entities[entity.Path] = entity.Clone()
	return nil
}

func (s *MemoryMetadataStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[path]
	if !ok {
		return nil
	}

	delete(s.entities, path)
	delete(s.children, path)
	if siblings, ok := s.children[e.Parent()]; ok {
		delete(siblings, e.Name())
	}
	return nil
}

func (s *MemoryMetadataStore) Children(ctx context.Context, path string) ([]*metadata.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.entities[path]; !ok {
		return nil, &metadata.StoreError{Code: metadata.ErrNotFound, Message: "collection not found", Path: path}
	}

	names := make([]string, 0, len(s.children[path]))
	for name := range s.children[path] {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*metadata.Entity, 0, len(names))
	for _, name := range names {
		out = append(out, s.entities[s.children[path][name]].Clone())
	}
	return out, nil
}

func (s *MemoryMetadataStore) Scan(ctx context.Context, prefix string, fn func(*metadata.Entity) error) error {
	s.mu.RLock()
	paths := make([]string, 0)
	for p := range s.entities {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	snapshot := make(map[string]*metadata.Entity, len(paths))
	for _, p := range paths {
		snapshot[p] = s.entities[p].Clone()
	}
	s.mu.RUnlock()

	sort.Strings(paths)
	for i, p := range paths {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(snapshot[p]); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the store lives as long as the process.
func (s *MemoryMetadataStore) Close() error {
	return nil
}
