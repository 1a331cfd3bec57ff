package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled.  KeyStrategy determines which parts of the request contribute
// to the cache key; Prefix namespaces every key and is also what the
// invalidator scans for.
type CacheConfig struct {
	Enabled      bool            `envconfig:"CACHE_ENABLED" default:"true"`
	MethodList   []string        `envconfig:"CACHE_METHODS" default:"GET"`
	Methods      map[string]bool `ignored:"true"`
	TTL          time.Duration   `envconfig:"CACHE_TTL" default:"30s"`
	KeyStrategy  string          `envconfig:"CACHE_KEY_STRATEGY" default:"route_query"`
	Prefix       string          `envconfig:"CACHE_PREFIX" default:"cache"`
	MaxBodyBytes int             `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}

// LoadCacheConfig reads CACHE_* variables.  All methods are upper-cased.
func LoadCacheConfig() (CacheConfig, error) {
	var cfg CacheConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return CacheConfig{}, fmt.Errorf("process cache env: %w", err)
	}
	cfg.Methods = parseMethods(cfg.MethodList)
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	return cfg, nil
}

func parseMethods(list []string) map[string]bool {
	m := map[string]bool{}
	for _, p := range list {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
