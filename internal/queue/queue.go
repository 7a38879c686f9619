// Package queue carries reservation requests from intake to settlement.
// Every driver keeps submission order per seat (the group key) and drops
// repeated submissions of the same (seat, user) pair inside a window (the
// dedup key). Consumers hand batches to a Settler and acknowledge each
// message according to its own outcome.
package queue

import (
	"context"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// Settler settles a batch of queued messages, one result per message in
// input order.
type Settler interface {
	SettleBatch(ctx context.Context, msgs []model.QueueMessage) []service.Settlement
}

const (
	headerGroupKey = "x-group-key"
	headerDedupKey = "x-dedup-key"
	headerOutcome  = "x-settlement-outcome"
)

// collect blocks for the first item, then gathers up to max items until
// wait elapses. open is false once in is closed or ctx is done; a batch
// cut short by ctx is discarded so the broker redelivers it.
func collect[T any](ctx context.Context, in <-chan T, max int, wait time.Duration) (batch []T, open bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case v, ok := <-in:
		if !ok {
			return nil, false
		}
		batch = append(batch, v)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for len(batch) < max {
		select {
		case <-ctx.Done():
			return nil, false
		case v, ok := <-in:
			if !ok {
				return batch, false
			}
			batch = append(batch, v)
		case <-timer.C:
			return batch, true
		}
	}
	return batch, true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}
