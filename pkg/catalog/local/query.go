package local

import (
	"context"
	"strconv"

	"github.com/marmos91/catalogfs/internal/logger"
	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/marmos91/catalogfs/pkg/metadata"
)

// Query evaluates a general query by scanning the metadata store.
//
// Rows are data objects when the query mentions DATA_NAME, collections
// otherwise. For a data object COLL_NAME is the holding collection; for a
// collection it is its own path. The scan is narrowed to the literal prefix
// of a COLL_NAME condition.
func (c *conn) Query(ctx context.Context, q catalog.Query) ([]string, error) {
	if err := c.ready(ctx); err != nil {
		return nil, err
	}
	if !validColumn(q.Select) || !validColumn(q.Where) {
		return nil, catalog.NewError(catalog.CodeInvalidArgument, "unknown column in "+q.String(), "")
	}

	overObjects := q.OverDataObjects()
	match := q.Matcher()

	prefix := "/"
	if q.Where == catalog.ColumnCollName {
		if lp := q.LiteralPrefix(); len(lp) > 0 && lp[0] == '/' {
			prefix = lp
		}
	}

	var rows []string
	count := 0
	err := c.engine.meta.Scan(ctx, prefix, func(e *metadata.Entity) error {
		if overObjects != (e.Kind == catalog.KindDataObject) {
			return nil
		}
		if !match(column(e, q.Where)) {
			return nil
		}
		count++
		if !q.Count {
			rows = append(rows, column(e, q.Select))
		}
		return nil
	})
	if err != nil {
		return nil, fromStoreError(err, "")
	}

	logger.Debug("query: %s rows=%d", q.String(), count)

	if q.Count {
		return []string{strconv.Itoa(count)}, nil
	}
	return rows, nil
}

func validColumn(col catalog.Column) bool {
	return col == catalog.ColumnDataName || col == catalog.ColumnCollName
}

func column(e *metadata.Entity, col catalog.Column) string {
	switch col {
	case catalog.ColumnDataName:
		return e.Name()
	case catalog.ColumnCollName:
		if e.Kind == catalog.KindCollection {
			return e.Path
		}
		return e.Parent()
	}
	return ""
}
