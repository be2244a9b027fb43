// Package config provides the service configuration, loaded from file,
// environment and flag overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the service needs to run. One instance is built at
// startup and passed down; nothing reads configuration after that.
type Config struct {
	// Upstream API access
	YouTubeAPIKey string  `mapstructure:"youtube_api_key"`
	UpstreamQPS   float64 `mapstructure:"upstream_qps"` // client-side request rate toward the API

	// Fetch pipeline
	AudienceAge    int           `mapstructure:"audience_age"`     // max age the safety filter protects
	CallTimeout    time.Duration `mapstructure:"call_timeout"`     // per upstream call
	ProxyCacheTTL  time.Duration `mapstructure:"proxy_cache_ttl"`  // response cache TTL on the HTTP surface
	RetryAttempts  int           `mapstructure:"retry_attempts"`   // transient-failure retries per call
	RetryWait      time.Duration `mapstructure:"retry_wait"`       // initial backoff
	RetryMaxWait   time.Duration `mapstructure:"retry_max_wait"`   // backoff ceiling
	RedisURL       string        `mapstructure:"redis_url"`        // empty runs the cache in-process only
	SearchKeywords []string      `mapstructure:"search_keywords"`  // pool keywords, fetched in order

	// HTTP server
	ListenAddr     string        `mapstructure:"listen_addr"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"` // per client IP
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`

	// Storage
	DatabasePath string `mapstructure:"database_path"` // sqlite file for favorites and recent searches

	// Logging
	LogLevel  string `mapstructure:"log_level"`  // trace|debug|info|warn|error
	LogFormat string `mapstructure:"log_format"` // console|json
}

// Default returns a configuration with sensible defaults. The API key has no
// default and must come from config or environment.
func Default() *Config {
	return &Config{
		UpstreamQPS:   5,
		AudienceAge:   13,
		CallTimeout:   30 * time.Second,
		ProxyCacheTTL: time.Hour,
		RetryAttempts: 2,
		RetryWait:     500 * time.Millisecond,
		RetryMaxWait:  5 * time.Second,
		SearchKeywords: []string{
			"ai music video",
			"ai generated music",
			"ai song",
			"suno ai music",
		},
		ListenAddr:     ":8080",
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		ShutdownGrace:  10 * time.Second,
		DatabasePath:   "aimuzon.db",
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads configuration from the given file (optional), an aimuzon.yaml in
// the working directory, and AIMUZON_* environment variables, merged over the
// defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	// Registered even though blank so Unmarshal picks it up from environment.
	v.SetDefault("youtube_api_key", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("upstream_qps", def.UpstreamQPS)
	v.SetDefault("audience_age", def.AudienceAge)
	v.SetDefault("call_timeout", def.CallTimeout)
	v.SetDefault("proxy_cache_ttl", def.ProxyCacheTTL)
	v.SetDefault("retry_attempts", def.RetryAttempts)
	v.SetDefault("retry_wait", def.RetryWait)
	v.SetDefault("retry_max_wait", def.RetryMaxWait)
	v.SetDefault("search_keywords", def.SearchKeywords)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("rate_limit_rps", def.RateLimitRPS)
	v.SetDefault("rate_limit_burst", def.RateLimitBurst)
	v.SetDefault("shutdown_grace", def.ShutdownGrace)
	v.SetDefault("database_path", def.DatabasePath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)

	v.SetEnvPrefix("AIMUZON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("aimuzon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.YouTubeAPIKey == "" {
		return fmt.Errorf("youtube_api_key is required (set AIMUZON_YOUTUBE_API_KEY or the config file)")
	}

	if c.UpstreamQPS <= 0 {
		return fmt.Errorf("upstream_qps must be positive")
	}

	if c.AudienceAge < 1 {
		return fmt.Errorf("audience_age must be at least 1")
	}

	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}

	if c.ProxyCacheTTL <= 0 {
		return fmt.Errorf("proxy_cache_ttl must be positive")
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}

	if len(c.SearchKeywords) == 0 {
		return fmt.Errorf("search_keywords cannot be empty")
	}
	for _, kw := range c.SearchKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("search_keywords cannot contain blank entries")
		}
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate_limit_rps must be positive")
	}

	if c.RateLimitBurst < 1 {
		return fmt.Errorf("rate_limit_burst must be at least 1")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path cannot be empty")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level '%s', must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format '%s', must be console or json", c.LogFormat)
	}

	return nil
}
