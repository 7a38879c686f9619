package config

import "time"

// RateLimitConfig shapes the token bucket in front of intake and
// cancellation. KeyStrategy selects the bucket key: ip, user, route, or
// two of them joined by "_" (ip_user, ip_route, user_route).
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int           // burst size
	RefillTokens   int           // tokens added per RefillInterval
	RefillInterval time.Duration
	TTL            time.Duration // idle bucket expiry
	KeyStrategy    string
	Prefix         string
	Debug          bool // expose X-RateLimit-Key
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables. RATE_LIMIT_BURST is an
// alias for RATE_LIMIT_CAPACITY. Buckets never expire before five refill
// intervals have passed.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl:reservation"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
		cfg.Capacity = burst
	}
	cfg.Capacity = max(cfg.Capacity, 1)
	cfg.RefillTokens = max(cfg.RefillTokens, 1)
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	cfg.TTL = max(cfg.TTL, 5*cfg.RefillInterval)
	return cfg
}
