package vfs

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/marmos91/catalogfs/pkg/catalog"
)

// globMeta are the characters that turn a List argument into a pattern.
const globMeta = "*?[{"

// List returns the names of the entries at path.
//
// For a collection these are the base names of its data objects and direct
// sub-collections. For a data object it is the object's own name. The path
// itself is never part of the result. Names are sorted and unique.
//
// If path contains any of "*?[{" it is a doublestar pattern: the static
// leading segments select the collection to search and the rest filters
// names relative to it, with "**" crossing collection boundaries.
func (s *Session) List(ctx context.Context, raw string) (names []string, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, err) }()

	if err := s.requireConn("list"); err != nil {
		return nil, err
	}
	p, err := s.normalize("list", raw)
	if err != nil {
		return nil, err
	}

	if strings.ContainsAny(raw, globMeta) {
		return s.glob(ctx, p)
	}

	seen := make(map[string]struct{})

	if p != "/" {
		// A data object lists as itself.
		parent, name := parentOf(p), baseOf(p)
		rows, err := s.query(ctx, p, catalog.Query{
			Select: catalog.ColumnCollName,
			Where:  catalog.ColumnDataName,
			Op:     catalog.OpEquals,
			Value:  name,
		})
		if err != nil {
			return nil, err
		}
		for _, coll := range rows {
			if coll == parent {
				seen[name] = struct{}{}
			}
		}
	}

	objects, err := s.dataObjectsIn(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, name := range objects {
		seen[name] = struct{}{}
	}

	colls, err := s.collectionsUnder(ctx, p)
	if err != nil {
		return nil, err
	}
	for _, c := range colls {
		if parentOf(c) == p {
			seen[baseOf(c)] = struct{}{}
		}
	}

	return sortedNames(seen), nil
}

// glob expands a normalized pattern.
func (s *Session) glob(ctx context.Context, pattern string) ([]string, error) {
	base, rel := doublestar.SplitPattern(pattern)
	if rel == "" || !doublestar.ValidatePattern(rel) {
		return nil, newError(InvalidPath, "list", pattern, doublestar.ErrBadPattern)
	}

	colls, err := s.collectionsUnder(ctx, base)
	if err != nil {
		return nil, err
	}

	// A single-segment pattern never looks past the direct children of base.
	deep := strings.Contains(rel, "/") || strings.Contains(rel, "**")

	candidates := make(map[string]struct{})
	searched := []string{base}
	for _, c := range colls {
		if !deep && parentOf(c) != base {
			continue
		}
		candidates[relativeTo(base, c)] = struct{}{}
		if deep {
			searched = append(searched, c)
		}
	}

	for _, coll := range searched {
		objects, err := s.dataObjectsIn(ctx, coll)
		if err != nil {
			return nil, err
		}
		prefix := relativeTo(base, coll)
		for _, name := range objects {
			candidates[path.Join(prefix, name)] = struct{}{}
		}
	}

	matched := make(map[string]struct{})
	for name := range candidates {
		ok, err := doublestar.Match(rel, name)
		if err != nil {
			return nil, newError(InvalidPath, "list", pattern, err)
		}
		if ok {
			matched[name] = struct{}{}
		}
	}
	return sortedNames(matched), nil
}

// dataObjectsIn returns the names of the data objects held by coll.
func (s *Session) dataObjectsIn(ctx context.Context, coll string) ([]string, error) {
	return s.query(ctx, coll, catalog.Query{
		Select: catalog.ColumnDataName,
		Where:  catalog.ColumnCollName,
		Op:     catalog.OpEquals,
		Value:  coll,
	})
}

// collectionsUnder returns the paths of every collection strictly below p.
func (s *Session) collectionsUnder(ctx context.Context, p string) ([]string, error) {
	prefix := childPrefix(p)
	rows, err := s.query(ctx, p, catalog.Query{
		Select: catalog.ColumnCollName,
		Where:  catalog.ColumnCollName,
		Op:     catalog.OpLike,
		Value:  prefix + "%",
	})
	if err != nil {
		return nil, err
	}

	// "_" and "%" in p are LIKE wildcards, so the catalog may return
	// collections outside p.
	out := rows[:0]
	for _, c := range rows {
		if c != p && strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Session) query(ctx context.Context, p string, q catalog.Query) ([]string, error) {
	rows, err := s.conn.Query(ctx, q)
	if err != nil {
		return nil, remoteError("list", p, RemoteLookupFailure, err)
	}
	return rows, nil
}

func childPrefix(p string) string {
	if p == "/" {
		return "/"
	}
	return p + "/"
}

// relativeTo returns p relative to base, "" when they are equal.
func relativeTo(base, p string) string {
	if p == base {
		return ""
	}
	return strings.TrimPrefix(p, childPrefix(base))
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
