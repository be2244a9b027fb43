package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochetovM/aimuzon/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_FavoriteRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := model.VideoItem{
		VideoID:     "vid-1",
		Title:       "Neon Dreams (AI music video)",
		ChannelID:   "ch-1",
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tags:        []string{"ai", "music"},
		MadeForKids: true,
	}
	require.NoError(t, s.UpsertFavorite(ctx, v))

	got, found, err := s.Favorite(ctx, "vid-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, v, got)

	_, found, err = s.Favorite(ctx, "vid-unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_UpsertIsIdempotentByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := model.VideoItem{VideoID: "vid-1", Title: "first"}
	require.NoError(t, s.UpsertFavorite(ctx, v))

	v.Title = "updated"
	require.NoError(t, s.UpsertFavorite(ctx, v))

	all, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "updated", all[0].Title)
}

func TestSQLiteStore_UpsertRejectsEmptyID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.UpsertFavorite(context.Background(), model.VideoItem{Title: "no id"}))
}

func TestSQLiteStore_DeleteFavorite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFavorite(ctx, model.VideoItem{VideoID: "vid-1"}))
	require.NoError(t, s.DeleteFavorite(ctx, "vid-1"))

	all, err := s.Favorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// Absent id is a no-op, not an error.
	assert.NoError(t, s.DeleteFavorite(ctx, "vid-1"))
}

func TestSQLiteStore_FavoritesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	for i, id := range []string{"a", "b", "c"} {
		clock = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.UpsertFavorite(ctx, model.VideoItem{VideoID: id}))
	}

	all, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].VideoID)
	assert.Equal(t, "a", all[2].VideoID)
}

func TestSQLiteStore_RecentSearches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	for i, q := range []string{"ai music", "lofi", "ai music", "synthwave"} {
		clock = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.RecordSearch(ctx, q))
	}

	recent, err := s.RecentSearches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Distinct queries, newest occurrence first.
	assert.Equal(t, "synthwave", recent[0].Query)
	assert.Equal(t, "ai music", recent[1].Query)
	assert.Equal(t, "lofi", recent[2].Query)

	limited, err := s.RecentSearches(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_RecordSearchIgnoresEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSearch(ctx, ""))

	recent, err := s.RecentSearches(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
