package rabbit_test

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/rabbit"
	"github.com/iliyamo/event-seat-reservation/internal/rabbit/rabbittest"
)

func TestPublisher_ReusesChannelAndRunsSetupOnce(t *testing.T) {
	ch := rabbittest.NewFakeChannel()
	opens, setups := 0, 0
	p := rabbit.NewPublisher(ch.Opener(&opens), func(c rabbit.Channel) error {
		setups++
		return c.ExchangeDeclare("x", "fanout", true, false, false, false, nil)
	})

	require.NoError(t, p.Publish(context.Background(), "x", "", amqp.Publishing{Body: []byte("1")}))
	require.NoError(t, p.Publish(context.Background(), "x", "", amqp.Publishing{Body: []byte("2")}))

	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, setups)
	assert.Len(t, ch.Published, 2)
	assert.Equal(t, "fanout", ch.Exchanges["x"])
}

func TestPublisher_ReopensAfterFailure(t *testing.T) {
	ch := rabbittest.NewFakeChannel()
	opens := 0
	p := rabbit.NewPublisher(ch.Opener(&opens), nil)

	ch.PublishErr = errors.New("channel closed")
	assert.Error(t, p.Publish(context.Background(), "", "q", amqp.Publishing{}))
	assert.True(t, ch.Closed)

	ch.PublishErr = nil
	require.NoError(t, p.Publish(context.Background(), "", "q", amqp.Publishing{}))
	assert.Equal(t, 2, opens)
}

func TestPublisher_OpenError(t *testing.T) {
	boom := errors.New("dial failed")
	p := rabbit.NewPublisher(func() (rabbit.Channel, error) { return nil, boom }, nil)
	assert.ErrorIs(t, p.Publish(context.Background(), "", "q", amqp.Publishing{}), boom)
}
