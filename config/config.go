// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the alertdesk service.
type Config struct {
	API struct {
		Host           string   `mapstructure:"host"`
		Port           int      `mapstructure:"port"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	RecordStore struct {
		BaseURL    string `mapstructure:"base_url"`
		Collection string `mapstructure:"collection"`
		Timeout    int    `mapstructure:"timeout"` // seconds
	} `mapstructure:"record_store"`

	SearchBackend struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // seconds
	} `mapstructure:"search_backend"`

	Drafts struct {
		Backend string `mapstructure:"backend"` // "memory" or "redis"
		TTL     int    `mapstructure:"ttl"`     // minutes, redis only
		Redis   struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"drafts"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// setDefaults applies default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8085)
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.rate_limit.requests_per_second", 50)
	v.SetDefault("api.rate_limit.burst", 100)

	v.SetDefault("record_store.base_url", "http://localhost:8089")
	v.SetDefault("record_store.collection", "alerts")
	v.SetDefault("record_store.timeout", 15)

	v.SetDefault("search_backend.base_url", "http://localhost:8089")
	v.SetDefault("search_backend.timeout", 60)

	v.SetDefault("drafts.backend", "memory")
	v.SetDefault("drafts.ttl", 240)
	v.SetDefault("drafts.redis.addr", "localhost:6379")
	v.SetDefault("drafts.redis.db", 0)

	v.SetDefault("logging.level", "info")
}

// Load reads configuration from alertdesk.yaml (working directory or
// /etc/alertdesk) with ALERTDESK_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("alertdesk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/alertdesk")

	v.SetEnvPrefix("ALERTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults plus env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	for name, raw := range map[string]string{
		"record_store.base_url":   c.RecordStore.BaseURL,
		"search_backend.base_url": c.SearchBackend.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	if c.RecordStore.Collection == "" {
		return fmt.Errorf("record_store.collection cannot be empty")
	}
	switch c.Drafts.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid drafts backend: %q (expected memory or redis)", c.Drafts.Backend)
	}
	return nil
}
