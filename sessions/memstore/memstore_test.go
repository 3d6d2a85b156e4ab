package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkAndIsInitialized(t *testing.T) {
	s := New()
	ctx := context.Background()

	ok, err := s.IsInitialized(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkInitialized(ctx, "sess-1", time.Hour))
	ok, err = s.IsInitialized(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInitializedFlagExpires(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.MarkInitialized(ctx, "sess-1", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	ok, err := s.IsInitialized(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
