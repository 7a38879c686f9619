package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// fakeSettler returns a fixed outcome per message id (reserved by default)
// and records every batch it sees.
type fakeSettler struct {
	outcomes map[string]service.Outcome
	batches  [][]model.QueueMessage
}

func (f *fakeSettler) SettleBatch(_ context.Context, msgs []model.QueueMessage) []service.Settlement {
	f.batches = append(f.batches, msgs)
	out := make([]service.Settlement, len(msgs))
	for i, m := range msgs {
		out[i] = service.Settlement{MessageID: m.ID, Outcome: f.outcomes[m.ID]}
	}
	return out
}

func intakeBody(t *testing.T, seat, user string) []byte {
	t.Helper()
	b, err := json.Marshal(model.IntakeRequest{EventID: "evt-1", SeatID: seat, UserID: user})
	require.NoError(t, err)
	return b
}

func TestCollect_StopsAtMax(t *testing.T) {
	in := make(chan int, 5)
	for i := 0; i < 5; i++ {
		in <- i
	}
	batch, open := collect(context.Background(), in, 3, time.Second)
	assert.Equal(t, []int{0, 1, 2}, batch)
	assert.True(t, open)
}

func TestCollect_StopsAfterWait(t *testing.T) {
	in := make(chan int, 1)
	in <- 7
	batch, open := collect(context.Background(), in, 10, 10*time.Millisecond)
	assert.Equal(t, []int{7}, batch)
	assert.True(t, open)
}

func TestCollect_ClosedChannel(t *testing.T) {
	in := make(chan int, 2)
	in <- 1
	close(in)
	batch, open := collect(context.Background(), in, 10, time.Second)
	assert.Equal(t, []int{1}, batch)
	assert.False(t, open)

	batch, open = collect(context.Background(), in, 10, time.Second)
	assert.Empty(t, batch)
	assert.False(t, open)
}

func TestCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch, open := collect(ctx, make(chan int), 10, time.Second)
	assert.Nil(t, batch)
	assert.False(t, open)
}

func TestDeduper_NilAcceptsEverything(t *testing.T) {
	var d *Deduper
	assert.True(t, d.Claim(context.Background(), "A1-u1"))
	d.Release(context.Background(), "A1-u1")

	d = NewDeduper(nil, time.Minute, nil)
	assert.True(t, d.Claim(context.Background(), "A1-u1"))
	assert.True(t, d.Claim(context.Background(), "A1-u1"))
}

func TestDeduper_FailsOpenWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	d := NewDeduper(rdb, time.Minute, nil)
	assert.True(t, d.Claim(context.Background(), "A1-u1"))
}
