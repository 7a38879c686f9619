package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper remembers dedup keys in Redis for a fixed window. A nil Deduper,
// or one without a client, accepts every key. Redis errors fail open: a
// duplicate that slips through is rejected later by the store's uniqueness
// check, a request dropped by mistake is not recoverable.
type Deduper struct {
	rdb    *redis.Client
	window time.Duration
	prefix string
	log    *zap.Logger
}

func NewDeduper(rdb *redis.Client, window time.Duration, log *zap.Logger) *Deduper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deduper{rdb: rdb, window: window, prefix: "dedup:reservation:", log: log}
}

// Claim reports whether key is new within the window.
func (d *Deduper) Claim(ctx context.Context, key string) bool {
	if d == nil || d.rdb == nil || d.window <= 0 {
		return true
	}
	ok, err := d.rdb.SetNX(ctx, d.prefix+key, 1, d.window).Result()
	if err != nil {
		d.log.Warn("dedup: redis error, accepting message", zap.String("dedup_key", key), zap.Error(err))
		return true
	}
	return ok
}

// releaseTimeout bounds the DEL issued after a failed enqueue.
const releaseTimeout = time.Second

// Release forgets key so a retry after a failed enqueue is not swallowed.
// It runs detached from ctx: the enqueue usually failed because ctx was
// cancelled or timed out, and the key must go regardless.
func (d *Deduper) Release(ctx context.Context, key string) {
	if d == nil || d.rdb == nil || d.window <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := d.rdb.Del(ctx, d.prefix+key).Err(); err != nil {
		d.log.Warn("dedup: release failed", zap.String("dedup_key", key), zap.Error(err))
	}
}
