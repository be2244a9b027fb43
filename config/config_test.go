package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	c := Default()
	c.YouTubeAPIKey = "test-api-key"
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults with key",
			modify: func(c *Config) {},
		},
		{
			name:    "missing API key",
			modify:  func(c *Config) { c.YouTubeAPIKey = "" },
			wantErr: "youtube_api_key",
		},
		{
			name:    "non-positive qps",
			modify:  func(c *Config) { c.UpstreamQPS = 0 },
			wantErr: "upstream_qps",
		},
		{
			name:    "zero audience age",
			modify:  func(c *Config) { c.AudienceAge = 0 },
			wantErr: "audience_age",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.RetryAttempts = -1 },
			wantErr: "retry_attempts",
		},
		{
			name:    "empty keyword list",
			modify:  func(c *Config) { c.SearchKeywords = nil },
			wantErr: "search_keywords",
		},
		{
			name:    "blank keyword entry",
			modify:  func(c *Config) { c.SearchKeywords = []string{"ai music", "  "} },
			wantErr: "blank",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.LogFormat = "xml" },
			wantErr: "log_format",
		},
		{
			name:    "rate limit burst below one",
			modify:  func(c *Config) { c.RateLimitBurst = 0 },
			wantErr: "rate_limit_burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaultRetryBudget(t *testing.T) {
	assert.Equal(t, 2, Default().RetryAttempts)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aimuzon.yaml")
	content := `
youtube_api_key: file-key
listen_addr: ":9090"
audience_age: 16
proxy_cache_ttl: 30m
search_keywords:
  - "ai music"
  - "neural symphony"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.YouTubeAPIKey)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 16, cfg.AudienceAge)
	assert.Equal(t, 30*time.Minute, cfg.ProxyCacheTTL)
	assert.Equal(t, []string{"ai music", "neural symphony"}, cfg.SearchKeywords)

	// Untouched fields keep their defaults.
	assert.Equal(t, Default().UpstreamQPS, cfg.UpstreamQPS)
	assert.Equal(t, Default().DatabasePath, cfg.DatabasePath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AIMUZON_YOUTUBE_API_KEY", "env-key")
	t.Setenv("AIMUZON_LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.YouTubeAPIKey)
	assert.Equal(t, "json", cfg.LogFormat)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
