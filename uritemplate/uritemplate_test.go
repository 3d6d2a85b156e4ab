package uritemplate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTemplate(t *testing.T) {
	assert.True(t, IsTemplate("users://{id}"))
	assert.False(t, IsTemplate("users://42"))
}

func TestMatchSingleSegment(t *testing.T) {
	params, ok := Match("users://42", "users://{id}")
	require.True(t, ok)
	assert.Equal(t, "42", params["id"])
}

func TestMatchSingleSegmentRejectsExtraSegments(t *testing.T) {
	_, ok := Match("users://42/profile", "users://{id}")
	assert.False(t, ok)
}

func TestMatchReservedMultiSegment(t *testing.T) {
	params, ok := Match("files:///a/b/c.txt", "files://{path*}")
	require.True(t, ok)
	assert.Equal(t, "/a/b/c.txt", params["path"])
}

func TestMatchURLDecodesCaptures(t *testing.T) {
	params, ok := Match("users://john%20doe", "users://{name}")
	require.True(t, ok)
	assert.Equal(t, "john doe", params["name"])
}

func TestMatchNoMatch(t *testing.T) {
	_, ok := Match("orders://1", "users://{id}")
	assert.False(t, ok)
}

func TestExpand(t *testing.T) {
	got := Expand("users://{id}", map[string]string{"id": "john doe"})
	assert.Equal(t, "users://john+doe", got)
}

func TestExpandMissingParamIsEmpty(t *testing.T) {
	got := Expand("users://{id}", nil)
	assert.Equal(t, "users://", got)
}
