package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracklab/trove/internal/object"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trove.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		if err != nil {
			t.Fatal(err)
		}
		if !cfg.Watch.Enabled {
			t.Error("watch disabled by default")
		}
		if !cfg.InvalidateOnChange() {
			t.Error("invalidation disabled by default")
		}
		ttl, err := cfg.CacheTTL()
		if err != nil || ttl != 0 {
			t.Errorf("CacheTTL() = %v, %v", ttl, err)
		}
	})

	t.Run("full file", func(t *testing.T) {
		path := writeConfig(t, `
watch:
  enabled: false
  types: [trials, models]
cache:
  capacity: 16
  ttl: 2m
  invalidate-on-change: false
ratelimit:
  per-second: 10
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Watch.Enabled {
			t.Error("watch.enabled not honored")
		}
		types, err := cfg.WatchedTypes()
		if err != nil {
			t.Fatal(err)
		}
		if len(types) != 2 || types[0] != object.Trials || types[1] != object.Models {
			t.Errorf("types = %v", types)
		}
		if cfg.Cache.Capacity != 16 {
			t.Errorf("capacity = %d", cfg.Cache.Capacity)
		}
		ttl, err := cfg.CacheTTL()
		if err != nil || ttl != 2*time.Minute {
			t.Errorf("CacheTTL() = %v, %v", ttl, err)
		}
		if cfg.InvalidateOnChange() {
			t.Error("invalidate-on-change not honored")
		}
		if cfg.RateLimit.Burst != 10 {
			t.Errorf("burst = %d, want derived 10", cfg.RateLimit.Burst)
		}
	})

	t.Run("zero ttl disables expiry", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, "cache:\n  ttl: \"0\"\n"))
		if err != nil {
			t.Fatal(err)
		}
		ttl, err := cfg.CacheTTL()
		if err != nil || ttl >= 0 {
			t.Errorf("CacheTTL() = %v, %v, want negative", ttl, err)
		}
	})

	t.Run("bad values", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, "cache:\n  ttl: soon\n"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := cfg.CacheTTL(); err == nil {
			t.Error("CacheTTL() accepted a bad duration")
		}

		cfg, err = LoadConfig(writeConfig(t, "watch:\n  types: [gadgets]\n"))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := cfg.WatchedTypes(); err == nil {
			t.Error("WatchedTypes() accepted an unknown type")
		}

		if _, err := LoadConfig(writeConfig(t, "cache: [not a map]\n")); err == nil {
			t.Error("LoadConfig() accepted malformed YAML")
		}
	})
}
