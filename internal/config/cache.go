package config

import (
    "time"
)

// CacheConfig defines settings for the profile response cache.  When Enabled
// is false or no Redis client is configured, caching is disabled.  Entries
// are namespaced by Prefix and the authenticated subject so a profile update
// can evict everything cached for that user.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        TTL:          envDur("CACHE_TTL", 5*time.Minute),
        Prefix:       envStr("CACHE_PREFIX", "profile"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 64*1024),
    }
}
