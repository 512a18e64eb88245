package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultMaxBodyBytes caps request bodies when MAX_BODY_BYTES is unset.
const DefaultMaxBodyBytes = 64 << 10

type Config struct {
	Port string

	// Optional bearer token for /api routes
	APIKey string

	// Completion service
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	AnthropicTimeout time.Duration

	// Prompt templates: directory holding current.json
	ResourcesDir string

	// Result cache
	CacheDir     string
	CacheEnabled bool

	// Request limits
	MaxBodyBytes int64

	// Rolling window for /api/stats/llm
	StatsWindow time.Duration

	// Optional static UI
	StaticDir string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "3001"),

		APIKey: os.Getenv("SENTREE_API_KEY"),

		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicModel:   envOr("ANTHROPIC_MODEL", "claude-3-7-sonnet-20250219"),
		AnthropicTimeout: envDuration("ANTHROPIC_TIMEOUT", 120*time.Second),

		ResourcesDir: envOr("RESOURCES_DIR", "resources"),

		CacheDir:     envOr("CACHE_DIR", "cache"),
		CacheEnabled: envBool("CACHE_ENABLED", true),

		MaxBodyBytes: envInt64("MAX_BODY_BYTES", DefaultMaxBodyBytes),

		StatsWindow: envDuration("STATS_WINDOW", time.Hour),

		StaticDir: os.Getenv("STATIC_DIR"),
	}

	if cfg.AnthropicTimeout <= 0 {
		cfg.AnthropicTimeout = 120 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = time.Hour
	}

	return cfg
}

// Validate checks settings the process cannot start without. A missing API
// key is not one of them; it is reported per request instead.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.ResourcesDir == "" {
		return fmt.Errorf("RESOURCES_DIR is required")
	}
	if c.CacheEnabled && c.CacheDir == "" {
		return fmt.Errorf("CACHE_DIR is required when CACHE_ENABLED is true")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
