// Package client wraps the YouTube Data API behind a narrow interface so the
// rest of the pipeline can be tested against mocks and so upstream failures
// arrive pre-classified.
package client

import (
	"context"
	"time"
)

// SearchParams carries one upstream search invocation. Zero-value times mean
// the bound is left off the upstream call; callers are expected to pass
// already-normalized windows.
type SearchParams struct {
	Query           string
	PageToken       string
	Order           string
	MaxResults      int64
	PublishedAfter  time.Time
	PublishedBefore time.Time
	VideoCategoryID string
	VideoDuration   string
	VideoSyndicated bool
}

// SearchHit is one raw search result before detail enrichment.
type SearchHit struct {
	VideoID      string
	Title        string
	Description  string
	ChannelID    string
	ChannelTitle string
	ThumbnailURL string
	PublishedAt  time.Time
}

// SearchPage is one page of raw search results.
type SearchPage struct {
	Hits          []SearchHit
	NextPageToken string
}

// VideoDetail carries the per-video fields only available from the videos
// endpoint, keyed by video id in the map VideoDetails returns.
type VideoDetail struct {
	Duration      string
	ViewCount     string
	Tags          []string
	CategoryID    string
	MadeForKids   bool
	AgeRestricted bool
}

// SearchClient is the upstream surface the pipeline depends on.
//
// VideoDetails and ChannelStats are batch lookups: absent ids are simply
// missing from the returned map, which callers treat as "no signal" rather
// than an error.
type SearchClient interface {
	// SearchVideos runs one search call and returns the raw page.
	SearchVideos(ctx context.Context, p SearchParams) (*SearchPage, error)

	// VideoDetails fetches content details, statistics and status for up to
	// one batch of video ids.
	VideoDetails(ctx context.Context, ids []string) (map[string]VideoDetail, error)

	// ChannelStats fetches subscriber counts for up to one batch of channel
	// ids.
	ChannelStats(ctx context.Context, ids []string) (map[string]int64, error)
}
