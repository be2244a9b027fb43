// Package model contains the data types shared across the aggregation pipeline.
package model

import (
	"strconv"
	"time"
)

// Sort orders accepted by the upstream search endpoint.
const (
	OrderDate      = "date"
	OrderRating    = "rating"
	OrderRelevance = "relevance"
	OrderTitle     = "title"
	OrderViewCount = "viewCount"
)

// VideoItem is one discovered video, assembled by joining a search hit with
// its batch detail lookup. Items are constructed once and treated as
// immutable downstream; filters exclude them from views instead of mutating
// or deleting them.
type VideoItem struct {
	VideoID       string    `json:"videoId"`
	Title         string    `json:"title"`
	ChannelID     string    `json:"channelId"`
	ChannelTitle  string    `json:"channelTitle"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	PublishedAt   time.Time `json:"publishedAt"`
	Duration      string    `json:"duration,omitempty"`
	ViewCount     string    `json:"viewCount,omitempty"`
	Description   string    `json:"description"`
	Tags          []string  `json:"tags,omitempty"`
	CategoryID    string    `json:"videoCategoryId,omitempty"`
	MadeForKids   bool      `json:"madeForKids"`
	AgeRestricted bool      `json:"ageRestricted,omitempty"`
}

// Views parses the upstream view count, which arrives as a decimal string.
// Missing or unparseable counts are treated as zero.
func (v VideoItem) Views() int64 {
	if v.ViewCount == "" {
		return 0
	}
	n, err := strconv.ParseInt(v.ViewCount, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// URL returns the public watch URL for the video.
func (v VideoItem) URL() string {
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

// SearchResponse is the payload produced by one search invocation. Cached is
// set when the payload was served from the response cache instead of a fresh
// upstream fetch.
type SearchResponse struct {
	Query         string      `json:"query"`
	Items         []VideoItem `json:"items"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
	Cached        bool        `json:"cached,omitempty"`
}
