package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetSet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, ":memory:")

	_, ok, err := s.Get(ctx, "church_events")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "church_events", "[]"))
	require.NoError(t, s.Set(ctx, "church_events", `[{"id":1}]`))

	v, ok, err := s.Get(ctx, "church_events")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, v)
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")

	first, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "event_likes", `{"a":[]}`))
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	v, ok, err := second.Get(ctx, "event_likes")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":[]}`, v)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, ":memory:")

	var got []string
	require.NoError(t, LoadJSON(ctx, s, "missing", &got))
	assert.Nil(t, got)

	require.NoError(t, SaveJSON(ctx, s, "tags", []string{"youth", "worship"}))
	require.NoError(t, LoadJSON(ctx, s, "tags", &got))
	assert.Equal(t, []string{"youth", "worship"}, got)

	require.NoError(t, s.Set(ctx, "broken", "{"))
	assert.Error(t, LoadJSON(ctx, s, "broken", &got))
}
