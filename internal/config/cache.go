package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the redis read-through cache. When
// Enabled is false or no Redis client is configured, every read goes to
// the database. ResponseTTL bounds cached public responses, EntityTTL
// bounds cached groups and events; both should stay short since the
// cache is never consulted for capacity decisions.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	ResponseTTL  time.Duration
	EntityTTL    time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(envStr("CACHE_METHODS", "GET")),
		ResponseTTL:  envDur("CACHE_TTL", 10*time.Second),
		EntityTTL:    envDur("CACHE_ENTITY_TTL", time.Minute),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1048576),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
