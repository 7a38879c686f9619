package config

import (
	"time"
)

// CacheConfig defines settings for the seat-status response cache.  Seat
// status changes whenever a reservation commits or is cancelled, so the
// TTL is kept short; it only absorbs polling bursts from clients waiting
// for their queued request to settle.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  Defaults are used when unset.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 2*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache:seat"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 4096),
	}
}
