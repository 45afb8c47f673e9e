// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"lumen/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Vision.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVisionKey sets the vision API key on the test config.
func WithVisionKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Vision.APIKey = key
	}
}

// WithCacheService points the test config at a cache service URL and
// enables the cache.
func WithCacheService(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = true
		b.cfg.Cache.BaseURL = baseURL
	}
}

// WithLanguage overrides the narration language tag.
func WithLanguage(tag string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.Language = tag
	}
}
