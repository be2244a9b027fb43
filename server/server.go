// Package server exposes the aggregation pipeline over HTTP. It is a thin
// transport adapter: every search goes through the shared pipeline, pool and
// category endpoints delegate to the orchestrator, and favorites/recent
// searches pass through to the store.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kochetovM/aimuzon/config"
	"github.com/kochetovM/aimuzon/model"
	"github.com/kochetovM/aimuzon/orchestrator"
	"github.com/kochetovM/aimuzon/search"
	"github.com/kochetovM/aimuzon/store"
)

// Searcher is the slice of the pipeline the search endpoint needs.
type Searcher interface {
	Search(ctx context.Context, text, pageToken string, opts search.Options) (*model.SearchResponse, error)
}

// Pool is the slice of the orchestrator the pool endpoints need.
type Pool interface {
	InitialLoad(ctx context.Context, onProgress func(orchestrator.Progress)) orchestrator.Progress
	LoadMore(ctx context.Context) ([]model.VideoItem, error)
	Pool() []model.VideoItem
	Buckets() map[string][]model.VideoItem
	Loaded() bool
	SessionID() string
}

// Server wires the HTTP surface. Construct with New, then Run.
type Server struct {
	cfg      *config.Config
	searcher Searcher
	pool     Pool
	store    store.Store
	engine   *gin.Engine
}

// New builds the router with all middleware and routes registered.
func New(cfg *config.Config, searcher Searcher, pool Pool, st store.Store) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:      cfg,
		searcher: searcher,
		pool:     pool,
		store:    st,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(accessLog())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	engine.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	engine.GET("/healthz", s.handleHealth)

	api := engine.Group("/api")
	{
		api.GET("/search", s.handleSearch)
		api.POST("/pool/load", s.handlePoolLoad)
		api.POST("/pool/more", s.handlePoolMore)
		api.GET("/pool", s.handlePool)
		api.GET("/categories", s.handleCategories)
		api.GET("/favorites", s.handleListFavorites)
		api.GET("/favorites/:videoId", s.handleGetFavorite)
		api.PUT("/favorites/:videoId", s.handlePutFavorite)
		api.DELETE("/favorites/:videoId", s.handleDeleteFavorite)
		api.GET("/searches/recent", s.handleRecentSearches)
	}

	s.engine = engine
	return s
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
