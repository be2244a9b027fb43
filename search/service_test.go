package search

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kochetovM/aimuzon/cache"
	"github.com/kochetovM/aimuzon/client"
	"github.com/kochetovM/aimuzon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	searchCalls  atomic.Int32
	detailCalls  atomic.Int32
	channelCalls atomic.Int32

	searchFn  func(p client.SearchParams) (*client.SearchPage, error)
	detailsFn func(ids []string) (map[string]client.VideoDetail, error)
	statsFn   func(ids []string) (map[string]int64, error)
}

func (s *stubClient) SearchVideos(_ context.Context, p client.SearchParams) (*client.SearchPage, error) {
	s.searchCalls.Add(1)
	if s.searchFn != nil {
		return s.searchFn(p)
	}
	return &client.SearchPage{}, nil
}

func (s *stubClient) VideoDetails(_ context.Context, ids []string) (map[string]client.VideoDetail, error) {
	s.detailCalls.Add(1)
	if s.detailsFn != nil {
		return s.detailsFn(ids)
	}
	return map[string]client.VideoDetail{}, nil
}

func (s *stubClient) ChannelStats(_ context.Context, ids []string) (map[string]int64, error) {
	s.channelCalls.Add(1)
	if s.statsFn != nil {
		return s.statsFn(ids)
	}
	return map[string]int64{}, nil
}

func page(ids ...string) *client.SearchPage {
	p := &client.SearchPage{}
	for _, id := range ids {
		p.Hits = append(p.Hits, client.SearchHit{
			VideoID:   id,
			Title:     "Video " + id,
			ChannelID: "ch-" + id,
		})
	}
	return p
}

func newTestService(t *testing.T, stub *stubClient, mode Mode) *Service {
	t.Helper()
	rc := cache.NewResponseCache("", time.Hour)
	t.Cleanup(func() { rc.Close() })

	svc := NewService(stub, rc, ServiceConfig{Mode: mode, Retry: fastPolicy()})
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestService_AssemblesEnrichedItems(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return &client.SearchPage{
				Hits: []client.SearchHit{
					{VideoID: "a", Title: "Neon Nights", ChannelID: "ch-1", ChannelTitle: "Synths", ThumbnailURL: "a.jpg"},
				},
				NextPageToken: "NEXT",
			}, nil
		},
		detailsFn: func(ids []string) (map[string]client.VideoDetail, error) {
			return map[string]client.VideoDetail{
				"a": {Duration: "PT3M10S", ViewCount: "12345", Tags: []string{"ai", "music"}, CategoryID: "10"},
			}, nil
		},
	}
	svc := newTestService(t, stub, ModeProxy)

	resp, err := svc.Search(context.Background(), "ai music", "", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	item := resp.Items[0]
	assert.Equal(t, "a", item.VideoID)
	assert.Equal(t, "Neon Nights", item.Title)
	assert.Equal(t, "PT3M10S", item.Duration)
	assert.Equal(t, "12345", item.ViewCount)
	assert.Equal(t, "10", item.CategoryID)
	assert.Equal(t, []string{"ai", "music"}, item.Tags)
	assert.Equal(t, "NEXT", resp.NextPageToken)
	assert.Equal(t, "ai music", resp.Query)
	assert.False(t, resp.Cached)
}

func TestService_CachedReplay(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return page("a", "b"), nil
		},
	}
	svc := newTestService(t, stub, ModeProxy)
	ctx := context.Background()

	first, err := svc.Search(ctx, "ai music", "", Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, first.Items, 2)

	second, err := svc.Search(ctx, "ai music", "", Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached, "repeat inside the TTL must come from cache")
	assert.Equal(t, int32(1), stub.searchCalls.Load(), "cache hit must not call upstream")

	// The replay carries the stored items even though their ids are now in
	// the keyword's seen set.
	require.Len(t, second.Items, 2)
	assert.Equal(t, first.Items[0].VideoID, second.Items[0].VideoID)
}

func TestService_DedupAcrossFetchesSameKeyword(t *testing.T) {
	var call atomic.Int32
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			if call.Add(1) == 1 {
				return page("a", "b"), nil
			}
			return page("b", "c"), nil
		},
	}
	svc := newTestService(t, stub, ModeProxy)
	ctx := context.Background()

	first, err := svc.Search(ctx, "ai music", "", Options{})
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)

	// A different window is a different cache key, so this fetches fresh;
	// the keyword scope still remembers b.
	older := Options{
		PublishedAfter:  testNow.AddDate(0, -3, 0),
		PublishedBefore: testNow.AddDate(0, -2, 0),
	}
	second, err := svc.Search(ctx, "ai music", "", older)
	require.NoError(t, err)
	require.Len(t, second.Items, 1, "already-surfaced ids must be dropped")
	assert.Equal(t, "c", second.Items[0].VideoID)
}

func TestService_SeenScopesIsolatedByKeyword(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return page("shared"), nil
		},
	}
	svc := newTestService(t, stub, ModeProxy)
	ctx := context.Background()

	first, err := svc.Search(ctx, "ai music", "", Options{})
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	other, err := svc.Search(ctx, "ai song", "", Options{})
	require.NoError(t, err)
	require.Len(t, other.Items, 1, "an id surfaced under one keyword must still appear under another")
}

func TestService_EnrichmentFailureKeepsItems(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return page("a", "b"), nil
		},
		detailsFn: func(ids []string) (map[string]client.VideoDetail, error) {
			return nil, upstream(500)
		},
	}
	svc := newTestService(t, stub, ModeProxy)

	resp, err := svc.Search(context.Background(), "ai music", "", Options{})
	require.NoError(t, err, "enrichment failure must not fail the request")
	require.Len(t, resp.Items, 2)

	for _, item := range resp.Items {
		assert.False(t, item.MadeForKids, "missing details default to not made-for-kids")
		assert.False(t, item.AgeRestricted, "missing details default to no age restriction")
		assert.Empty(t, item.ViewCount)
	}
}

func TestService_ChannelStatsFailureKeepsItems(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return page("a"), nil
		},
		statsFn: func(ids []string) (map[string]int64, error) {
			return nil, upstream(503)
		},
	}
	svc := newTestService(t, stub, ModeProxy)

	resp, err := svc.Search(context.Background(), "ai music", "", Options{})
	require.NoError(t, err, "missing channel stats must not fail the request")
	assert.Len(t, resp.Items, 1)
}

func TestService_UpstreamFailurePropagatesAndIsNotCached(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return nil, upstream(403)
		},
	}
	svc := newTestService(t, stub, ModeProxy)
	ctx := context.Background()

	_, err := svc.Search(ctx, "ai music", "", Options{})
	require.Error(t, err)
	assert.True(t, client.IsQuotaOrForbidden(err))

	_, err = svc.Search(ctx, "ai music", "", Options{})
	require.Error(t, err)
	assert.Equal(t, int32(2), stub.searchCalls.Load(), "failures must not be cached")
}

func TestService_InvalidQuerySkipsUpstream(t *testing.T) {
	stub := &stubClient{}
	svc := newTestService(t, stub, ModeDirect)

	_, err := svc.Search(context.Background(), "   ", "", Options{})
	require.Error(t, err)
	assert.True(t, IsInvalidQuery(err))
	assert.Equal(t, int32(0), stub.searchCalls.Load(), "invalid input must never reach upstream")
}

func TestService_ConcurrentIdenticalRequestsShareOneFetch(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			time.Sleep(150 * time.Millisecond)
			return page("a", "b", "c"), nil
		},
	}
	svc := newTestService(t, stub, ModeProxy)
	ctx := context.Background()

	const callers = 4
	var wg sync.WaitGroup
	results := make([]*model.SearchResponse, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Search(ctx, "ai music", "", Options{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Len(t, results[i].Items, 3, "every caller sees the same payload")
	}
	assert.Equal(t, int32(1), stub.searchCalls.Load(), "identical concurrent requests share one upstream call")
}

func TestService_BlockedTitleDroppedWithoutEnrichment(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return &client.SearchPage{
				Hits: []client.SearchHit{
					{VideoID: "bad", Title: "XXX beats", ChannelID: "ch-1"},
					{VideoID: "good", Title: "Lofi beats", ChannelID: "ch-2"},
				},
			}, nil
		},
		detailsFn: func(ids []string) (map[string]client.VideoDetail, error) {
			return nil, upstream(500)
		},
	}
	svc := newTestService(t, stub, ModeProxy)

	resp, err := svc.Search(context.Background(), "ai music", "", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "good", resp.Items[0].VideoID)
}

func TestService_RanksBeforeCachingOrReturning(t *testing.T) {
	stub := &stubClient{
		searchFn: func(p client.SearchParams) (*client.SearchPage, error) {
			return page("plain", "kids"), nil
		},
		detailsFn: func(ids []string) (map[string]client.VideoDetail, error) {
			return map[string]client.VideoDetail{
				"kids": {MadeForKids: true},
			}, nil
		},
	}
	svc := newTestService(t, stub, ModeProxy)
	ctx := context.Background()

	resp, err := svc.Search(ctx, "ai music", "", Options{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "kids", resp.Items[0].VideoID, "made-for-kids ranks first")

	cached, err := svc.Search(ctx, "ai music", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "kids", cached.Items[0].VideoID, "cached replay keeps the ranked order")
}
