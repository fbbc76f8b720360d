package local

import (
	"context"
	"os"
	"testing"

	"github.com/marmos91/catalogfs/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQueryTree(t *testing.T, c catalog.Conn) string {
	t.Helper()
	ctx := context.Background()
	home := testEnv.HomePath()

	for _, p := range []string{home + "/proj", home + "/proj/src", home + "/project-old"} {
		require.NoError(t, c.MakeCollection(ctx, p))
	}
	for _, p := range []string{home + "/proj/README", home + "/proj/src/main.go", home + "/README"} {
		d, err := c.OpenObject(ctx, p, os.O_CREATE|os.O_WRONLY, 0644, "")
		require.NoError(t, err)
		require.NoError(t, c.CloseObject(ctx, d))
	}
	return home
}

func TestQuery(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	home := seedQueryTree(t, c)
	ctx := context.Background()

	tests := []struct {
		name  string
		query catalog.Query
		want  []string
	}{
		{
			name:  "DataObjectsByName",
			query: catalog.Query{Select: catalog.ColumnCollName, Where: catalog.ColumnDataName, Op: catalog.OpEquals, Value: "README"},
			want:  []string{home, home + "/proj"},
		},
		{
			name:  "DataObjectsInCollection",
			query: catalog.Query{Select: catalog.ColumnDataName, Where: catalog.ColumnCollName, Op: catalog.OpEquals, Value: home + "/proj"},
			want:  []string{"README"},
		},
		{
			name:  "CollectionsLike",
			query: catalog.Query{Select: catalog.ColumnCollName, Where: catalog.ColumnCollName, Op: catalog.OpLike, Value: home + "/proj%"},
			want:  []string{home + "/proj", home + "/proj/src", home + "/project-old"},
		},
		{
			name:  "LikeSingleCharacter",
			query: catalog.Query{Select: catalog.ColumnDataName, Where: catalog.ColumnDataName, Op: catalog.OpLike, Value: "main._o"},
			want:  []string{"main.go"},
		},
		{
			name:  "NoMatches",
			query: catalog.Query{Select: catalog.ColumnCollName, Where: catalog.ColumnCollName, Op: catalog.OpEquals, Value: "/nowhere"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := c.Query(ctx, tt.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, rows)
		})
	}
}

func TestQuery_Count(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)
	home := seedQueryTree(t, c)

	rows, err := c.Query(context.Background(), catalog.Query{
		Select: catalog.ColumnCollName,
		Where:  catalog.ColumnCollName,
		Op:     catalog.OpLike,
		Value:  home + "/proj%",
		Count:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, rows)
}

func TestQuery_UnknownColumn(t *testing.T) {
	e := newTestEngine(t)
	c := connect(t, e)

	_, err := c.Query(context.Background(), catalog.Query{Select: "DATA_SIZE", Where: catalog.ColumnCollName})
	requireCode(t, catalog.CodeInvalidArgument, err)
}
