package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	const cwd = "/zone/home/alice"

	tests := []struct {
		name  string
		raw   string
		mount string
		root  string
		want  string
	}{
		// Literal cases with the default root
		{name: "Dot", raw: ".", mount: "/share", want: cwd},
		{name: "Empty", raw: "", mount: "/share", want: cwd},
		{name: "DotSlash", raw: "./x", mount: "/share", want: cwd + "/x"},
		{name: "MountPrefixed", raw: "/share/zone/home/alice/x", mount: "/share", want: cwd + "/x"},
		{name: "Relative", raw: "x", mount: "/share", want: cwd + "/x"},

		{name: "Absolute", raw: "/zone/home/bob", mount: "/share", want: "/zone/home/bob"},
		{name: "MountOnly", raw: "/share", mount: "/share", want: "/"},
		{name: "MountTrailingSlash", raw: "/share/zone", mount: "/share/", want: "/zone"},
		{name: "MountNeedsBoundary", raw: "/shared/x", mount: "/share", want: "/shared/x"},
		{name: "NoMount", raw: "/share/x", mount: "", want: "/share/x"},
		{name: "TrailingSlashes", raw: "x//", want: cwd + "/x"},
		{name: "TrailingDotSegment", raw: "x/.", want: cwd + "/x"},
		{name: "TrailingDots", raw: "x..", want: cwd + "/x"},
		{name: "ParentSegment", raw: "x/..", want: cwd},
		{name: "ParentOfCwd", raw: "..", want: "/zone/home"},
		{name: "InnerDots", raw: "./a/./b/../c", want: cwd + "/a/c"},
		{name: "DoubleSlashes", raw: "/zone//home///alice", want: cwd},
		{name: "Root", raw: "/", want: "/"},

		// Non-default catalog root
		{name: "RootedAbsolute", raw: "/home/alice", root: "/zone", want: cwd},
		{name: "AlreadyRooted", raw: "/zone/home/alice", root: "/zone", want: cwd},
		{name: "RootedSlash", raw: "/", root: "/zone", want: "/zone"},
		{name: "MountAfterRoot", raw: "/share/home/alice", mount: "/share", root: "/zone", want: cwd},
		{name: "MountCarriesRoot", raw: "/share/zone/home", mount: "/share", root: "/zone", want: "/zone/home"},
		{name: "RootTrailingSlash", raw: "x", root: "/zone/", want: cwd + "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, cwd, tt.mount, tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Escapes(t *testing.T) {
	const cwd = "/zone/home/alice"

	tests := []struct {
		name string
		raw  string
		root string
	}{
		{name: "AboveSlash", raw: "/../..", root: "/"},
		{name: "RelativeAboveSlash", raw: "../../../..", root: "/"},
		{name: "AboveRoot", raw: "/..", root: "/zone"},
		{name: "RelativeAboveRoot", raw: "../../..", root: "/zone"},
		{name: "SiblingOfRoot", raw: "../../../other", root: "/zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, cwd, "", tt.root)
			require.Error(t, err)
			assert.True(t, IsCode(err, InvalidPath), "got %v", err)
		})
	}
}

func TestNormalize_CanonicalIsFixedPoint(t *testing.T) {
	canonical := []string{
		"/",
		"/zone",
		"/zone/home/alice",
		"/zone/home/alice/x",
		"/zone/home/alice/a b/c-d_e",
		"/zone/home/bob/.hidden/f",
	}

	for _, p := range canonical {
		got, err := Normalize(p, "/zone/home/alice", "/share", "/")
		require.NoError(t, err)
		assert.Equal(t, p, got)

		again, err := Normalize(got, "/zone/home/bob", "/share", "/")
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/", parentOf("/"))
	assert.Equal(t, "/", parentOf("/zone"))
	assert.Equal(t, "/zone/home", parentOf("/zone/home/alice"))

	assert.Equal(t, "alice", baseOf("/zone/home/alice"))
	assert.Equal(t, "alice", baseOf("/zone/home/alice/"))
	assert.Equal(t, "f", baseOf("f"))

	assert.Equal(t, "/a", joinPath("/", "a"))
	assert.Equal(t, "/a/b", joinPath("/a", "b"))
}
