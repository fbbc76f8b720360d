package catalog

import (
	"regexp"
	"strings"
)

// Column is a queryable catalog attribute.
type Column string

const (
	// ColumnDataName is the bare name of a data object.
	ColumnDataName Column = "DATA_NAME"

	// ColumnCollName is the full path of a collection. For data objects it
	// is the path of the collection that holds them.
	ColumnCollName Column = "COLL_NAME"
)

// Op is a query condition operator.
type Op int

const (
	// OpEquals matches the value literally.
	OpEquals Op = iota

	// OpLike matches SQL LIKE patterns: % is any run of characters,
	// _ is exactly one character.
	OpLike
)

// Query selects one column from entities matching a single condition.
//
// The table is implied by the columns: a query that mentions DATA_NAME
// runs over data objects, otherwise it runs over collections.
type Query struct {
	Select Column
	Where  Column
	Op     Op
	Value  string

	// Count returns a single row with the number of matches instead of the
	// selected values.
	Count bool
}

// OverDataObjects reports whether the query runs over data objects.
func (q Query) OverDataObjects() bool {
	return q.Select == ColumnDataName || q.Where == ColumnDataName
}

// String renders the query in the catalog's general query syntax, used for
// logging.
func (q Query) String() string {
	sel := string(q.Select)
	if q.Count {
		sel = "count(" + sel + ")"
	}
	op := "="
	if q.Op == OpLike {
		op = "like"
	}
	return "select " + sel + " where " + string(q.Where) + " " + op + " '" + q.Value + "'"
}

// Matcher returns a predicate implementing the query's condition.
func (q Query) Matcher() func(string) bool {
	if q.Op == OpEquals {
		value := q.Value
		return func(s string) bool { return s == value }
	}

	re := likePattern(q.Value)
	return re.MatchString
}

// LiteralPrefix returns the part of the condition value that every match
// must start with. Stores use it to narrow scans.
func (q Query) LiteralPrefix() string {
	if q.Op == OpEquals {
		return q.Value
	}
	if i := strings.IndexAny(q.Value, "%_"); i >= 0 {
		return q.Value[:i]
	}
	return q.Value
}

func likePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile("(?s)" + b.String())
}
