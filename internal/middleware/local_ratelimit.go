package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/event-seat-reservation/internal/config"
)

// maxLocalBuckets bounds the in-process bucket map; idle buckets are swept
// once it is exceeded.
const maxLocalBuckets = 10000

// NewRateLimiter uses the shared Redis bucket when a client is available
// and a per-process limiter otherwise.
func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if rdb == nil {
		return NewLocalLimiter(cfg)
	}
	return NewTokenBucket(cfg, rdb, log)
}

type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewLocalLimiter enforces the same bucket shape as NewTokenBucket, but
// only within this process.
func NewLocalLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	every := cfg.RefillInterval / time.Duration(max(cfg.RefillTokens, 1))
	limit := rate.Every(every)
	burst := max(cfg.Capacity, 1)

	var mu sync.Mutex
	buckets := make(map[string]*localBucket)

	take := func(key string, now time.Time) *rate.Reservation {
		mu.Lock()
		defer mu.Unlock()
		if len(buckets) > maxLocalBuckets {
			for k, b := range buckets {
				if now.Sub(b.seen) > cfg.TTL {
					delete(buckets, k)
				}
			}
		}
		b, ok := buckets[key]
		if !ok {
			b = &localBucket{lim: rate.NewLimiter(limit, burst)}
			buckets[key] = b
		}
		b.seen = now
		return b.lim.ReserveN(now, 1)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			now := time.Now()
			r := take(key, now)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(burst))
			if delay := r.DelayFrom(now); delay > 0 {
				r.CancelAt(now)
				secs := int(math.Ceil(delay.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
