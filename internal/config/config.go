package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded from environment
// variables (HEADLINER_ prefix) with sensible defaults.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	ServerAddr string `mapstructure:"server_addr"`

	StorePath      string `mapstructure:"store_path"`
	FeedsFile      string `mapstructure:"feeds_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	RewriteEndpoint    string        `mapstructure:"rewrite_endpoint"`
	RewriteAPIKey      string        `mapstructure:"rewrite_api_key"`
	RewriteModel       string        `mapstructure:"rewrite_model"`
	RewriteTemperature float64       `mapstructure:"rewrite_temperature"`
	RewriteMaxTokens   int           `mapstructure:"rewrite_max_tokens"`
	RewriteMaxRetries  int           `mapstructure:"rewrite_max_retries"`
	RewriteBaseDelay   time.Duration `mapstructure:"rewrite_base_delay"`

	PollSpec      string        `mapstructure:"poll_spec"`
	PerFeedCap    int           `mapstructure:"per_feed_cap"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchCooldown time.Duration `mapstructure:"batch_cooldown"`
	ArticleDelay  time.Duration `mapstructure:"article_delay"`

	ExtractTimeout time.Duration `mapstructure:"extract_timeout"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("headliner")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("store_path", "headliner.db")
	v.SetDefault("feeds_file", "feeds.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("rewrite_endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("rewrite_model", "gpt-4o-mini")
	v.SetDefault("rewrite_temperature", 0.7)
	v.SetDefault("rewrite_max_tokens", 600)
	v.SetDefault("rewrite_max_retries", 3)
	v.SetDefault("rewrite_base_delay", "1200ms")
	v.SetDefault("poll_spec", "@every 1h")
	v.SetDefault("per_feed_cap", 5)
	v.SetDefault("batch_size", 5)
	v.SetDefault("batch_cooldown", "3s")
	v.SetDefault("article_delay", "5s")
	v.SetDefault("extract_timeout", "10s")

	// Bind explicitly so AutomaticEnv sees keys never touched by a file.
	for _, key := range []string{
		"log_level", "server_addr", "store_path", "feeds_file", "publishers_file",
		"rewrite_endpoint", "rewrite_api_key", "rewrite_model", "rewrite_temperature",
		"rewrite_max_tokens", "rewrite_max_retries", "rewrite_base_delay",
		"poll_spec", "per_feed_cap", "batch_size", "batch_cooldown",
		"article_delay", "extract_timeout",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate enforces the fatal-config rules: the process must not start
// half-configured.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RewriteAPIKey) == "" {
		return errors.New("rewrite api key is required (HEADLINER_REWRITE_API_KEY)")
	}
	if strings.TrimSpace(c.RewriteEndpoint) == "" {
		return errors.New("rewrite endpoint is required")
	}
	if strings.TrimSpace(c.StorePath) == "" {
		return errors.New("store path is required")
	}
	if strings.TrimSpace(c.FeedsFile) == "" {
		return errors.New("feeds file is required")
	}
	return nil
}
