package search

import (
	"context"
	"time"

	"github.com/kochetovM/aimuzon/cache"
	"github.com/kochetovM/aimuzon/client"
	"github.com/kochetovM/aimuzon/model"
	"github.com/kochetovM/aimuzon/ranking"
	"github.com/kochetovM/aimuzon/safety"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Cache lifetimes per surface. The command-line surface keeps results briefly
// so repeated invocations inside a session stay cheap; the HTTP surface holds
// them longer because many clients share it.
const (
	DefaultDirectCacheTTL = 15 * time.Minute
	DefaultProxyCacheTTL  = time.Hour
)

// DefaultAudienceAge keeps the pipeline family-safe unless a deployment
// explicitly raises it.
const DefaultAudienceAge = 13

// ServiceConfig tunes one pipeline instance. Zero fields take the defaults
// for the configured mode.
type ServiceConfig struct {
	Mode        Mode
	CacheTTL    time.Duration
	AudienceAge int
	CallTimeout time.Duration
	Retry       RetryPolicy
}

// Service is the fetch pipeline shared by every surface. One instance is safe
// for concurrent use; identical concurrent requests collapse into a single
// upstream call and repeated requests inside the cache TTL replay the stored
// response.
type Service struct {
	client client.SearchClient
	cache  *cache.ResponseCache
	seen   *cache.SeenSets
	group  singleflight.Group

	mode        Mode
	cacheTTL    time.Duration
	audienceAge int
	callTimeout time.Duration
	retry       RetryPolicy

	now func() time.Time
}

// NewService wires the pipeline. The seen-id registry is owned by the
// service: each query text gets its own dedup scope for the lifetime of the
// process.
func NewService(sc client.SearchClient, rc *cache.ResponseCache, cfg ServiceConfig) *Service {
	if cfg.CacheTTL <= 0 {
		if cfg.Mode == ModeProxy {
			cfg.CacheTTL = DefaultProxyCacheTTL
		} else {
			cfg.CacheTTL = DefaultDirectCacheTTL
		}
	}
	if cfg.AudienceAge <= 0 {
		cfg.AudienceAge = DefaultAudienceAge
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Service{
		client:      sc,
		cache:       rc,
		seen:        cache.NewSeenSets(),
		mode:        cfg.Mode,
		cacheTTL:    cfg.CacheTTL,
		audienceAge: cfg.AudienceAge,
		callTimeout: cfg.CallTimeout,
		retry:       cfg.Retry,
		now:         time.Now,
	}
}

// Search normalizes the query and runs it through cache, in-flight dedup,
// enrichment, safety filtering, seen-id dedup and ranking. Responses served
// from the cache are replayed as stored with Cached set. Callers must treat
// the returned response as read-only.
func (s *Service) Search(ctx context.Context, text, pageToken string, opts Options) (*model.SearchResponse, error) {
	q, err := Normalize(text, pageToken, opts, s.mode, s.now())
	if err != nil {
		return nil, err
	}
	key := q.CacheKey()

	var cached model.SearchResponse
	if s.cache.Get(ctx, key, &cached) {
		cached.Cached = true
		log.Debug().Str("query", q.Text).Str("key", key).Msg("Search served from cache")
		return &cached, nil
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.fetch(ctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("query", q.Text).Str("key", key).Msg("Search joined in-flight fetch")
	}
	return v.(*model.SearchResponse), nil
}

// fetch is the single-flighted upstream path: search, enrich, filter, dedup,
// rank, recheck titles, then cache the final payload.
func (s *Service) fetch(ctx context.Context, q Query, key string) (*model.SearchResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	page, err := retryDo(callCtx, s.retry, "video search", func() (*client.SearchPage, error) {
		return s.client.SearchVideos(callCtx, q.Params())
	})
	if err != nil {
		return nil, err
	}

	items := s.assemble(callCtx, q, page)
	items = safety.Filter(items, s.audienceAge)
	items = s.seen.FilterNew(q.Text, items)

	subs := s.channelStats(callCtx, items)
	ranking.Sort(items, subs, q.Options.Order)

	// Last look at titles alone: items that dodged the full filter because
	// enrichment was unavailable still get caught here before anything is
	// cached or returned.
	kept := make([]model.VideoItem, 0, len(items))
	for _, v := range items {
		if safety.TitleAllowed(v.Title) {
			kept = append(kept, v)
		}
	}

	resp := &model.SearchResponse{
		Query:         q.Text,
		Items:         kept,
		NextPageToken: page.NextPageToken,
	}
	s.cache.Set(ctx, key, resp, s.cacheTTL)

	log.Info().
		Str("query", q.Text).
		Str("mode", q.Mode.String()).
		Int("hits", len(page.Hits)).
		Int("returned", len(kept)).
		Msg("Search completed")
	return resp, nil
}

// assemble joins raw hits with their batch detail lookup. Enrichment is
// best-effort: when the details call fails the batch keeps its search-level
// fields with permissive defaults instead of failing the request.
func (s *Service) assemble(ctx context.Context, q Query, page *client.SearchPage) []model.VideoItem {
	ids := make([]string, 0, len(page.Hits))
	for _, h := range page.Hits {
		ids = append(ids, h.VideoID)
	}

	details, err := retryDo(ctx, s.retry, "video details", func() (map[string]client.VideoDetail, error) {
		return s.client.VideoDetails(ctx, ids)
	})
	if err != nil {
		log.Warn().Err(err).Str("query", q.Text).Msg("Video detail enrichment unavailable, continuing without it")
		details = map[string]client.VideoDetail{}
	}

	items := make([]model.VideoItem, 0, len(page.Hits))
	for _, h := range page.Hits {
		d := details[h.VideoID]
		items = append(items, model.VideoItem{
			VideoID:       h.VideoID,
			Title:         h.Title,
			ChannelID:     h.ChannelID,
			ChannelTitle:  h.ChannelTitle,
			ThumbnailURL:  h.ThumbnailURL,
			PublishedAt:   h.PublishedAt,
			Description:   h.Description,
			Duration:      d.Duration,
			ViewCount:     d.ViewCount,
			Tags:          d.Tags,
			CategoryID:    d.CategoryID,
			MadeForKids:   d.MadeForKids,
			AgeRestricted: d.AgeRestricted,
		})
	}
	return items
}

// channelStats fetches subscriber counts for the distinct channels in items.
// A failed lookup ranks every channel as not established rather than failing
// the request.
func (s *Service) channelStats(ctx context.Context, items []model.VideoItem) map[string]int64 {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, v := range items {
		if v.ChannelID == "" || seen[v.ChannelID] {
			continue
		}
		seen[v.ChannelID] = true
		ids = append(ids, v.ChannelID)
	}
	if len(ids) == 0 {
		return nil
	}

	stats, err := retryDo(ctx, s.retry, "channel statistics", func() (map[string]int64, error) {
		return s.client.ChannelStats(ctx, ids)
	})
	if err != nil {
		log.Warn().Err(err).Int("channels", len(ids)).Msg("Channel statistics unavailable, ranking without them")
		return nil
	}
	return stats
}
