package obpel

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/obpel/service/cache"
	"github.com/viant/obpel/service/meta"
	"go.uber.org/multierr"
)

// Store kinds accepted by StoreConfig.Kind.
const (
	StoreMemory = "memory"
	StoreFS     = "fs"
	StoreBolt   = "bolt"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML, JSON or flags; DefaultConfig supplies every
// value left unset.
type Config struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// StoreConfig selects where definition documents are persisted.
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	// URL is a directory or afs URL for fs, a file path for bolt.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// CacheConfig controls dehydration of idle definitions.
type CacheConfig struct {
	IdleTTL         time.Duration `json:"idleTTL" yaml:"idleTTL"`
	CleanupInterval time.Duration `json:"cleanupInterval" yaml:"cleanupInterval"`
	MaxHydrated     int           `json:"maxHydrated" yaml:"maxHydrated"`
}

type TracingConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config with an in-memory store and the default
// cache timings.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Kind: StoreMemory},
		Cache: CacheConfig{
			IdleTTL:         cache.DefaultIdleTTL,
			CleanupInterval: cache.DefaultCleanupInterval,
		},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var err error
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFS, StoreBolt:
		if c.Store.URL == "" {
			err = multierr.Append(err, fmt.Errorf("store.url is required for %s store", c.Store.Kind))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("store.kind %q is not one of %s, %s, %s", c.Store.Kind, StoreMemory, StoreFS, StoreBolt))
	}
	if c.Cache.IdleTTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("cache.idleTTL must be > 0"))
	}
	if c.Cache.CleanupInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("cache.cleanupInterval must be > 0"))
	}
	if c.Cache.MaxHydrated < 0 {
		err = multierr.Append(err, fmt.Errorf("cache.maxHydrated must be >= 0"))
	}
	return err
}

// LoadConfig reads a YAML or JSON configuration over the defaults.
// ${env.KEY} expressions are expanded.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	cfg := DefaultConfig()
	if err := meta.New(nil).Load(ctx, URL, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
