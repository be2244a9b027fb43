package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

const (
	// apiMaxBatch is the hard page-size and id-batch ceiling of the Data API.
	apiMaxBatch = 50

	// channelCacheSize bounds the subscriber-count cache; a session rarely
	// touches more than a few hundred distinct channels.
	channelCacheSize = 1000
)

// YouTubeSearchClient implements SearchClient on top of the YouTube Data API.
// All calls go through a shared rate limiter so burst traffic from concurrent
// searches does not trip the per-key request limits.
type YouTubeSearchClient struct {
	service      *ytapi.Service
	apiKey       string
	limiter      *rate.Limiter
	channelCache *lru.Cache[string, int64]
}

// NewYouTubeSearchClient creates a new YouTube search client. Connect must be
// called before any fetches.
func NewYouTubeSearchClient(apiKey string, qps float64) (*YouTubeSearchClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}
	if qps <= 0 {
		qps = 5
	}

	channelCache, err := lru.New[string, int64](channelCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel cache: %w", err)
	}

	return &YouTubeSearchClient{
		apiKey:       apiKey,
		limiter:      rate.NewLimiter(rate.Limit(qps), int(qps)+1),
		channelCache: channelCache,
	}, nil
}

// Connect establishes a connection to the YouTube API.
func (c *YouTubeSearchClient) Connect(ctx context.Context) error {
	log.Info().Msg("Connecting to YouTube API")

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	service, err := ytapi.NewService(ctx, option.WithAPIKey(c.apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		log.Error().Err(err).Msg("Failed to create YouTube service")
		return fmt.Errorf("failed to create YouTube service: %w", err)
	}

	c.service = service
	log.Info().Msg("Connected to YouTube API successfully")
	return nil
}

// Disconnect closes the connection to the YouTube API.
func (c *YouTubeSearchClient) Disconnect(ctx context.Context) error {
	// No explicit disconnect needed for the YouTube API client
	c.service = nil
	return nil
}

// SearchVideos runs one search call against the search endpoint. Results are
// video-type only; hits missing an id or snippet are dropped.
func (c *YouTubeSearchClient) SearchVideos(ctx context.Context, p SearchParams) (*SearchPage, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	maxResults := p.MaxResults
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > apiMaxBatch {
		maxResults = apiMaxBatch
	}

	log.Debug().
		Str("query", p.Query).
		Str("order", p.Order).
		Int64("max_results", maxResults).
		Time("published_after", p.PublishedAfter).
		Time("published_before", p.PublishedBefore).
		Msg("Searching YouTube videos")

	call := c.service.Search.List([]string{"snippet"}).
		Q(p.Query).
		Type("video").
		SafeSearch("strict").
		MaxResults(maxResults).
		Context(ctx)

	if p.Order != "" {
		call = call.Order(p.Order)
	}
	if p.PageToken != "" {
		call = call.PageToken(p.PageToken)
	}
	if !p.PublishedAfter.IsZero() {
		call = call.PublishedAfter(p.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if !p.PublishedBefore.IsZero() {
		call = call.PublishedBefore(p.PublishedBefore.UTC().Format(time.RFC3339))
	}
	if p.VideoCategoryID != "" {
		call = call.VideoCategoryId(p.VideoCategoryID)
	}
	if p.VideoDuration != "" {
		call = call.VideoDuration(p.VideoDuration)
	}
	if p.VideoSyndicated {
		call = call.VideoSyndicated("true")
	}

	response, err := call.Do()
	if err != nil {
		log.Error().Err(err).Str("query", p.Query).Msg("YouTube search call failed")
		return nil, classifyError(err)
	}

	page := &SearchPage{
		Hits:          make([]SearchHit, 0, len(response.Items)),
		NextPageToken: response.NextPageToken,
	}
	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}

		publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			log.Warn().Err(err).Str("date", item.Snippet.PublishedAt).Msg("Failed to parse video published date")
		}

		page.Hits = append(page.Hits, SearchHit{
			VideoID:      item.Id.VideoId,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelId,
			ChannelTitle: item.Snippet.ChannelTitle,
			ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
			PublishedAt:  publishedAt,
		})
	}

	log.Debug().Str("query", p.Query).Int("hits", len(page.Hits)).Msg("YouTube search completed")
	return page, nil
}

// VideoDetails fetches content details, statistics and status for a batch of
// video ids in a single call. Ids beyond the API batch ceiling are ignored.
func (c *YouTubeSearchClient) VideoDetails(ctx context.Context, ids []string) (map[string]VideoDetail, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected")
	}

	details := make(map[string]VideoDetail, len(ids))
	if len(ids) == 0 {
		return details, nil
	}
	if len(ids) > apiMaxBatch {
		ids = ids[:apiMaxBatch]
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics", "status"}).
		Id(ids...).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		log.Error().Err(err).Strs("video_ids", ids).Msg("Failed to get video details")
		return nil, classifyError(err)
	}

	for _, item := range response.Items {
		var detail VideoDetail
		if item.ContentDetails != nil {
			detail.Duration = item.ContentDetails.Duration
			if item.ContentDetails.ContentRating != nil {
				detail.AgeRestricted = item.ContentDetails.ContentRating.YtRating == "ytAgeRestricted"
			}
		}
		if item.Statistics != nil {
			detail.ViewCount = strconv.FormatUint(item.Statistics.ViewCount, 10)
		}
		if item.Snippet != nil {
			detail.Tags = item.Snippet.Tags
			detail.CategoryID = item.Snippet.CategoryId
		}
		if item.Status != nil {
			detail.MadeForKids = item.Status.MadeForKids
		}
		details[item.Id] = detail
	}

	log.Debug().Int("requested", len(ids)).Int("returned", len(details)).Msg("YouTube video details retrieved")
	return details, nil
}

// ChannelStats fetches subscriber counts for a batch of channel ids. Counts
// are cached because the same channels recur across keyword fetches; hidden
// subscriber counts are reported as zero.
func (c *YouTubeSearchClient) ChannelStats(ctx context.Context, ids []string) (map[string]int64, error) {
	if c.service == nil {
		return nil, fmt.Errorf("YouTube client not connected")
	}

	stats := make(map[string]int64, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if subs, ok := c.channelCache.Get(id); ok {
			stats[id] = subs
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return stats, nil
	}
	if len(missing) > apiMaxBatch {
		missing = missing[:apiMaxBatch]
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := c.service.Channels.List([]string{"statistics"}).
		Id(missing...).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		log.Error().Err(err).Int("channels", len(missing)).Msg("Failed to get channel statistics")
		return nil, classifyError(err)
	}

	for _, item := range response.Items {
		var subs int64
		if item.Statistics != nil && !item.Statistics.HiddenSubscriberCount {
			subs = int64(item.Statistics.SubscriberCount)
		}
		stats[item.Id] = subs
		c.channelCache.Add(item.Id, subs)
	}

	log.Debug().Int("requested", len(ids)).Int("fetched", len(missing)).Msg("YouTube channel statistics retrieved")
	return stats, nil
}

// bestThumbnail picks the highest-resolution thumbnail available.
func bestThumbnail(t *ytapi.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*ytapi.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}
