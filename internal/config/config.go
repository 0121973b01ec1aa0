// Package config provides Viper-based configuration management for tweetfilter
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Sternrassler/tweetfilter/pkg/aggregate"
	"github.com/Sternrassler/tweetfilter/pkg/cache"
	"github.com/Sternrassler/tweetfilter/pkg/client"
	"github.com/Sternrassler/tweetfilter/pkg/logging"
	"github.com/Sternrassler/tweetfilter/pkg/pagination"
)

// EnvPrefix prefixes environment overrides, e.g. TWEETFILTER_API_BASE_URL.
const EnvPrefix = "TWEETFILTER"

// DefaultBaseURL is the public Tweets API.
const DefaultBaseURL = "https://badapi.iqvia.io"

// Config represents the complete tweetfilter configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
}

// APIConfig contains Tweets API settings
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	PageSize          int           `mapstructure:"page_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// RetrievalConfig contains partitioning and pagination settings
type RetrievalConfig struct {
	Partitions     int           `mapstructure:"partitions"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxPages       int           `mapstructure:"max_pages"`
	PageTimeout    time.Duration `mapstructure:"page_timeout"`
	Policy         string        `mapstructure:"policy"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
}

// CacheConfig contains Redis page cache settings. An empty RedisURL disables the cache.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	StaleFor time.Duration `mapstructure:"stale_for"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// ServerConfig contains settings for the serve command
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"base-url":        "api.base_url",
	"page-size":       "api.page_size",
	"rps":             "api.requests_per_second",
	"partitions":      "retrieval.partitions",
	"max-concurrency": "retrieval.max_concurrency",
	"policy":          "retrieval.policy",
	"retries":         "retrieval.retry_attempts",
	"redis-url":       "cache.redis_url",
	"log-level":       "log.level",
	"pretty":          "log.pretty",
	"addr":            "server.addr",
}

// Load reads configuration from file, environment variables and flags.
// flags may be nil; only flags named in flagKeys are bound.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".tweetfilter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tweetfilter")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.user_agent", "tweetfilter/0.1.0")
	v.SetDefault("api.page_size", client.DefaultPageSize)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.requests_per_second", 0.0)
	v.SetDefault("api.burst", 1)

	v.SetDefault("retrieval.partitions", runtime.NumCPU())
	v.SetDefault("retrieval.max_concurrency", 0)
	v.SetDefault("retrieval.max_pages", 100000)
	v.SetDefault("retrieval.page_timeout", 15*time.Second)
	v.SetDefault("retrieval.policy", string(aggregate.PolicyAbort))
	v.SetDefault("retrieval.retry_attempts", 1)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.stale_for", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("server.addr", ":8080")
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if cfg.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be > 0 (got %d)", cfg.API.PageSize)
	}
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0 (got %s)", cfg.API.Timeout)
	}
	if cfg.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requests_per_second must be >= 0 (got %g)", cfg.API.RequestsPerSecond)
	}
	if cfg.Retrieval.Partitions <= 0 {
		return fmt.Errorf("retrieval.partitions must be > 0 (got %d)", cfg.Retrieval.Partitions)
	}
	if cfg.Retrieval.MaxConcurrency < 0 {
		return fmt.Errorf("retrieval.max_concurrency must be >= 0 (got %d)", cfg.Retrieval.MaxConcurrency)
	}
	if cfg.Retrieval.MaxPages <= 0 {
		return fmt.Errorf("retrieval.max_pages must be > 0 (got %d)", cfg.Retrieval.MaxPages)
	}
	if cfg.Retrieval.RetryAttempts < 1 {
		return fmt.Errorf("retrieval.retry_attempts must be >= 1 (got %d)", cfg.Retrieval.RetryAttempts)
	}
	if _, err := aggregate.ParsePolicy(cfg.Retrieval.Policy); err != nil {
		return fmt.Errorf("retrieval.policy: %w", err)
	}
	if err := logging.ValidateLevel(logging.LogLevel(cfg.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.Log.Level)
	lc.Pretty = c.Log.Pretty
	return lc
}

// Client returns the API client configuration without a Redis client;
// callers attach one when Cache.RedisURL is set.
func (c *Config) Client() client.Config {
	cc := client.DefaultConfig(c.API.BaseURL)
	cc.UserAgent = c.API.UserAgent
	cc.PageSize = c.API.PageSize
	cc.Timeout = c.API.Timeout
	cc.RequestsPerSecond = c.API.RequestsPerSecond
	cc.Burst = c.API.Burst
	cc.Cache = cache.Config{DefaultTTL: c.Cache.TTL, StaleFor: c.Cache.StaleFor}
	return cc
}

// Aggregate returns the aggregator configuration.
func (c *Config) Aggregate() aggregate.Config {
	policy, _ := aggregate.ParsePolicy(c.Retrieval.Policy)

	pc := pagination.DefaultConfig()
	pc.PageSize = c.API.PageSize
	pc.MaxPages = c.Retrieval.MaxPages
	pc.Timeout = c.Retrieval.PageTimeout
	if c.Retrieval.RetryAttempts > 1 {
		pc.Retry = pagination.DefaultRetryConfig()
		pc.Retry.MaxAttempts = c.Retrieval.RetryAttempts
	}

	return aggregate.Config{
		Partitions:     c.Retrieval.Partitions,
		MaxConcurrency: c.Retrieval.MaxConcurrency,
		Policy:         policy,
		Pagination:     pc,
	}
}
