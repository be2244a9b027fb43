package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kochetovM/aimuzon/cache"
	"github.com/kochetovM/aimuzon/client"
	"github.com/kochetovM/aimuzon/config"
	"github.com/kochetovM/aimuzon/orchestrator"
	"github.com/kochetovM/aimuzon/search"
	"github.com/kochetovM/aimuzon/server"
	"github.com/kochetovM/aimuzon/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "aimuzon",
		Short:         "Discovers and curates AI-generated music videos from YouTube",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ./aimuzon.yaml)")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newFetchCmd(&configPath))
	return root
}

// setupLogging configures the global zerolog output once, before anything
// else logs.
func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildPipeline assembles the upstream client and the shared fetch pipeline
// for the given mode.
func buildPipeline(ctx context.Context, cfg *config.Config, mode search.Mode, redisURL string) (*search.Service, *cache.ResponseCache, error) {
	yt, err := client.NewYouTubeSearchClient(cfg.YouTubeAPIKey, cfg.UpstreamQPS)
	if err != nil {
		return nil, nil, err
	}
	if err := yt.Connect(ctx); err != nil {
		return nil, nil, err
	}

	rc := cache.NewResponseCache(redisURL, cache.DefaultJanitorInterval)
	svc := search.NewService(yt, rc, search.ServiceConfig{
		Mode:        mode,
		CacheTTL:    cacheTTLFor(mode, cfg),
		AudienceAge: cfg.AudienceAge,
		CallTimeout: cfg.CallTimeout,
		Retry: search.RetryPolicy{
			MaxRetries:  cfg.RetryAttempts,
			InitialWait: cfg.RetryWait,
			MaxWait:     cfg.RetryMaxWait,
		},
	})
	return svc, rc, nil
}

func cacheTTLFor(mode search.Mode, cfg *config.Config) time.Duration {
	if mode == search.ModeProxy {
		return cfg.ProxyCacheTTL
	}
	return search.DefaultDirectCacheTTL
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, rc, err := buildPipeline(ctx, cfg, search.ModeProxy, cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to build pipeline: %w", err)
			}
			defer rc.Close()

			st, err := store.NewSQLiteStore(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			orch := orchestrator.New(svc, cfg.SearchKeywords)
			log.Info().
				Str("session_id", orch.SessionID()).
				Strs("keywords", cfg.SearchKeywords).
				Msg("Starting aimuzon API")

			return server.New(cfg, svc, orch, st).Run(ctx)
		},
	}
}

func newFetchCmd(configPath *string) *cobra.Command {
	var (
		query      string
		order      string
		maxResults int64
		after      string
		before     string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one search and print the results as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			opts := search.Options{Order: order, MaxResults: maxResults}
			if after != "" {
				t, err := time.Parse(time.RFC3339, after)
				if err != nil {
					return fmt.Errorf("invalid --published-after: %w", err)
				}
				opts.PublishedAfter = t
			}
			if before != "" {
				t, err := time.Parse(time.RFC3339, before)
				if err != nil {
					return fmt.Errorf("invalid --published-before: %w", err)
				}
				opts.PublishedBefore = t
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// One-shot invocation, no Redis tier needed.
			svc, rc, err := buildPipeline(ctx, cfg, search.ModeDirect, "")
			if err != nil {
				return fmt.Errorf("failed to build pipeline: %w", err)
			}
			defer rc.Close()

			resp, err := svc.Search(ctx, query, "", opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "search text (required)")
	cmd.Flags().StringVar(&order, "order", "date", "sort order: date, viewCount, relevance, rating, title")
	cmd.Flags().Int64Var(&maxResults, "max", 30, "maximum results (clamped to 30)")
	cmd.Flags().StringVar(&after, "published-after", "", "window start, RFC 3339")
	cmd.Flags().StringVar(&before, "published-before", "", "window end, RFC 3339")
	cmd.MarkFlagRequired("query")
	return cmd
}
