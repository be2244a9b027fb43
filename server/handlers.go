package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kochetovM/aimuzon/client"
	"github.com/kochetovM/aimuzon/model"
	"github.com/kochetovM/aimuzon/orchestrator"
	"github.com/kochetovM/aimuzon/search"
	"github.com/kochetovM/aimuzon/store"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSearch runs one query through the shared pipeline and records it in
// the recent-searches log.
func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	opts, err := parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_query"})
		return
	}

	resp, err := s.searcher.Search(c.Request.Context(), query, c.Query("pageToken"), opts)
	if err != nil {
		writeSearchError(c, err)
		return
	}

	if err := s.store.RecordSearch(c.Request.Context(), resp.Query); err != nil {
		log.Warn().Err(err).Str("query", resp.Query).Msg("Failed to record recent search")
	}

	c.JSON(http.StatusOK, resp)
}

// parseOptions reads the narrowing filters off the query string. Window
// bounds must be RFC 3339; everything else is passed through for the
// normalizer to default and clamp.
func parseOptions(c *gin.Context) (search.Options, error) {
	opts := search.Options{
		Order:           c.Query("order"),
		VideoCategoryID: c.Query("videoCategoryId"),
		VideoDuration:   c.Query("videoDuration"),
	}

	if raw := c.Query("maxResults"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return opts, errors.New("maxResults must be an integer")
		}
		opts.MaxResults = n
	}
	if raw := c.Query("publishedAfter"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("publishedAfter must be an RFC 3339 timestamp")
		}
		opts.PublishedAfter = t
	}
	if raw := c.Query("publishedBefore"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, errors.New("publishedBefore must be an RFC 3339 timestamp")
		}
		opts.PublishedBefore = t
	}
	if raw := c.Query("videoSyndicated"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("videoSyndicated must be a boolean")
		}
		opts.VideoSyndicated = b
	}
	return opts, nil
}

// writeSearchError maps pipeline failures onto status codes and stable
// machine-readable codes the frontend switches on.
func writeSearchError(c *gin.Context, err error) {
	switch {
	case search.IsInvalidQuery(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_query"})
	case client.IsBadRequest(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "upstream rejected the request, adjust the filters", "code": "bad_request"})
	case client.IsQuotaOrForbidden(err):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "upstream quota exhausted, try again later", "code": "quota_exhausted"})
	default:
		log.Error().Err(err).Msg("Search failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream search failed", "code": "upstream_error"})
	}
}

// handlePoolLoad runs the initial keyword sweep and returns the final
// progress summary, including any per-keyword failures.
func (s *Server) handlePoolLoad(c *gin.Context) {
	progress := s.pool.InitialLoad(c.Request.Context(), func(p orchestrator.Progress) {
		log.Debug().Int("completed", p.Completed).Int("total", p.Total).Msg("Initial load progress")
	})
	c.JSON(http.StatusOK, progress)
}

// handlePoolMore expands the pool backward in time. A trigger that arrives
// while another load runs is dropped, which the client sees as a conflict.
func (s *Server) handlePoolMore(c *gin.Context) {
	items, err := s.pool.LoadMore(c.Request.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "a load is already in progress", "code": "load_in_progress"})
			return
		}
		writeSearchError(c, err)
		return
	}
	if items == nil {
		items = []model.VideoItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handlePool(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessionId": s.pool.SessionID(),
		"loaded":    s.pool.Loaded(),
		"items":     s.pool.Pool(),
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": s.pool.Buckets()})
}

func (s *Server) handleListFavorites(c *gin.Context) {
	favorites, err := s.store.Favorites(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list favorites")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load favorites", "code": "store_error"})
		return
	}
	if favorites == nil {
		favorites = []model.VideoItem{}
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

func (s *Server) handleGetFavorite(c *gin.Context) {
	videoID := c.Param("videoId")
	v, found, err := s.store.Favorite(c.Request.Context(), videoID)
	if err != nil {
		log.Error().Err(err).Str("video_id", videoID).Msg("Failed to read favorite")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read favorite", "code": "store_error"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "favorite not found", "code": "not_found"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handlePutFavorite(c *gin.Context) {
	var v model.VideoItem
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a video item", "code": "invalid_body"})
		return
	}
	v.VideoID = c.Param("videoId")

	if err := s.store.UpsertFavorite(c.Request.Context(), v); err != nil {
		log.Error().Err(err).Str("video_id", v.VideoID).Msg("Failed to save favorite")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save favorite", "code": "store_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"videoId": v.VideoID})
}

func (s *Server) handleDeleteFavorite(c *gin.Context) {
	videoID := c.Param("videoId")
	if err := s.store.DeleteFavorite(c.Request.Context(), videoID); err != nil {
		log.Error().Err(err).Str("video_id", videoID).Msg("Failed to delete favorite")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete favorite", "code": "store_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRecentSearches(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	recent, err := s.store.RecentSearches(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list recent searches")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recent searches", "code": "store_error"})
		return
	}
	if recent == nil {
		recent = []store.RecentSearch{}
	}
	c.JSON(http.StatusOK, gin.H{"searches": recent})
}
