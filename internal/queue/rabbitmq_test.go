package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/rabbit/rabbittest"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

type ackCall struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct{ calls []ackCall }

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.calls = append(f.calls, ackCall{tag: tag, ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.calls = append(f.calls, ackCall{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestPartitionFor_StableAndInRange(t *testing.T) {
	for _, seat := range []string{"A1", "A2", "B17", "ZZ-99"} {
		p := partitionFor(seat, 8)
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 8)
		assert.Equal(t, p, partitionFor(seat, 8))
	}
	assert.Equal(t, 0, partitionFor("anything", 1))
}

func TestDeclareTopology(t *testing.T) {
	ch := rabbittest.NewFakeChannel()
	require.NoError(t, DeclareTopology(ch, "reservation.intake", 3))

	assert.Equal(t, amqp.ExchangeDirect, ch.Exchanges["reservation.intake.dlx"])
	assert.Contains(t, ch.Queues, "reservation.intake.dlq")
	for _, q := range []string{"reservation.intake.0", "reservation.intake.1", "reservation.intake.2"} {
		require.Contains(t, ch.Queues, q)
		assert.Equal(t, true, ch.Queues[q]["x-single-active-consumer"])
		assert.Equal(t, "reservation.intake.dlx", ch.Queues[q]["x-dead-letter-exchange"])
	}
	assert.Equal(t, []rabbittest.Binding{{Queue: "reservation.intake.dlq", Key: "reservation.intake", Exchange: "reservation.intake.dlx"}}, ch.Bindings)
}

func TestRabbitQueue_EnqueueRoutesBySeat(t *testing.T) {
	ch := rabbittest.NewFakeChannel()
	q := NewRabbitQueue(ch.Opener(nil), "reservation.intake", 4, nil, nil)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, model.IntakeRequest{EventID: "e1", SeatID: "A1", UserID: "u1"}))
	require.NoError(t, q.Enqueue(ctx, model.IntakeRequest{EventID: "e1", SeatID: "A1", UserID: "u2"}))

	require.Len(t, ch.Published, 2)
	want := PartitionQueue("reservation.intake", partitionFor("A1", 4))
	for _, p := range ch.Published {
		assert.Equal(t, "", p.Exchange)
		assert.Equal(t, want, p.Key)
		assert.Equal(t, amqp.Persistent, p.Msg.DeliveryMode)
		assert.Equal(t, "A1", p.Msg.Headers[headerGroupKey])
	}
	assert.Equal(t, "A1-u2", ch.Published[1].Msg.Headers[headerDedupKey])

	var got model.IntakeRequest
	require.NoError(t, json.Unmarshal(ch.Published[0].Msg.Body, &got))
	assert.Equal(t, "u1", got.UserID)
}

func TestRabbitQueue_EnqueueError(t *testing.T) {
	ch := rabbittest.NewFakeChannel()
	ch.PublishErr = errors.New("connection reset")
	q := NewRabbitQueue(ch.Opener(nil), "reservation.intake", 4, nil, nil)

	err := q.Enqueue(context.Background(), model.IntakeRequest{EventID: "e1", SeatID: "A1", UserID: "u1"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestRabbitConsumer_HandleAcksPerMessage(t *testing.T) {
	ack := &fakeAcknowledger{}
	delivery := func(tag uint64, id string, redelivered bool) amqp.Delivery {
		return amqp.Delivery{
			Acknowledger: ack,
			DeliveryTag:  tag,
			MessageId:    id,
			Redelivered:  redelivered,
			Headers:      amqp.Table{headerGroupKey: "A1"},
			Body:         intakeBody(t, "A1", id),
		}
	}
	settler := &fakeSettler{outcomes: map[string]service.Outcome{
		"ok":       service.OutcomeReserved,
		"conflict": service.OutcomeAlreadyReserved,
		"fail":     service.OutcomeFailed,
		"deferred": service.OutcomeDeferred,
		"retried":  service.OutcomeFailed,
		"bad":      service.OutcomeMalformed,
	}}
	c := NewRabbitConsumer(nil, "reservation.intake", 1, 10, 0, settler, nil)

	c.Handle(context.Background(), []amqp.Delivery{
		delivery(1, "ok", false),
		delivery(2, "conflict", false),
		delivery(3, "fail", false),
		delivery(4, "deferred", false),
		delivery(5, "retried", true),
		delivery(6, "bad", false),
	})

	assert.Equal(t, []ackCall{
		{tag: 1, ack: true},
		{tag: 2, ack: true},
		{tag: 3, requeue: true},
		{tag: 4, requeue: true},
		{tag: 5, requeue: false},
		{tag: 6, requeue: false},
	}, ack.calls)

	require.Len(t, settler.batches, 1)
	assert.Equal(t, "A1", settler.batches[0][0].GroupKey)
	assert.Equal(t, "ok", settler.batches[0][0].ID)
}
