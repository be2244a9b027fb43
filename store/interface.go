// Package store persists the user-facing side state of a session: the
// favorites keyed by video id and the recent-searches log. The aggregation
// pipeline itself keeps nothing here; this is the storage contract the HTTP
// surface works against.
package store

import (
	"context"
	"time"

	"github.com/kochetovM/aimuzon/model"
)

// RecentSearch is one entry of the recent-searches log.
type RecentSearch struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searchedAt"`
}

// Store defines favorites and recent-search persistence regardless of the
// underlying storage implementation.
type Store interface {
	// UpsertFavorite saves or replaces a favorite keyed by its video id.
	UpsertFavorite(ctx context.Context, v model.VideoItem) error

	// DeleteFavorite removes a favorite. Deleting an absent id is a no-op.
	DeleteFavorite(ctx context.Context, videoID string) error

	// Favorite returns one favorite by id; found is false when absent.
	Favorite(ctx context.Context, videoID string) (v model.VideoItem, found bool, err error)

	// Favorites returns all favorites, most recently saved first.
	Favorites(ctx context.Context) ([]model.VideoItem, error)

	// RecordSearch appends a query to the recent-searches log.
	RecordSearch(ctx context.Context, query string) error

	// RecentSearches returns up to limit distinct recent queries, newest
	// first.
	RecentSearches(ctx context.Context, limit int) ([]RecentSearch, error)

	// Close releases the underlying storage.
	Close() error
}
