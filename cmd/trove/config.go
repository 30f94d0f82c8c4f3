// Server configuration loaded from an optional YAML file.

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracklab/trove/internal/object"
)

// Config is the trove server configuration. Zero values mean defaults.
type Config struct {
	Watch struct {
		// Enabled turns on filesystem watching so records changed by other
		// processes are picked up and published as change events.
		Enabled bool `yaml:"enabled"`
		// Types restricts the change bridge to these record types. Empty
		// means all types.
		Types []string `yaml:"types"`
	} `yaml:"watch"`

	Cache struct {
		// Capacity bounds the number of cached base result sets.
		Capacity int `yaml:"capacity"`
		// TTL expires cached result sets, e.g. "5m". Empty means the
		// default, "0" disables expiry.
		TTL string `yaml:"ttl"`
		// InvalidateOnChange drops cached views of a record type when any of
		// its records mutates.
		InvalidateOnChange *bool `yaml:"invalidate-on-change"`
	} `yaml:"cache"`

	RateLimit struct {
		// PerSecond requests allowed per client. Zero disables limiting.
		PerSecond float64 `yaml:"per-second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"ratelimit"`
}

// LoadConfig reads the config file. A missing file yields the defaults; a
// present but invalid file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Watch.Enabled = true

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.RateLimit.PerSecond > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = max(int(cfg.RateLimit.PerSecond), 1)
	}
	return cfg, nil
}

// CacheTTL resolves the configured cache expiry. Zero means the cache
// default; a negative return disables expiry.
func (c *Config) CacheTTL() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl in config: %w", err)
	}
	if d <= 0 {
		return -1, nil
	}
	return d, nil
}

// InvalidateOnChange reports the configured invalidation policy, on by default.
func (c *Config) InvalidateOnChange() bool {
	if c.Cache.InvalidateOnChange == nil {
		return true
	}
	return *c.Cache.InvalidateOnChange
}

// WatchedTypes resolves the configured bridge types.
func (c *Config) WatchedTypes() ([]object.OType, error) {
	types := make([]object.OType, 0, len(c.Watch.Types))
	for _, s := range c.Watch.Types {
		ot, err := object.ParseOType(s)
		if err != nil {
			return nil, fmt.Errorf("invalid watch type in config: %w", err)
		}
		types = append(types, ot)
	}
	return types, nil
}
