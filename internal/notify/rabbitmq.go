// Package notify publishes reservation success notifications. Errors are
// logged and returned so the caller decides whether they matter; settlement
// treats them as non-fatal because the reservation is already committed.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/rabbit"
)

// RabbitNotifier publishes to a durable fanout exchange. Every queue bound
// to the exchange (email relay, confirmation log, analytics) gets a copy.
type RabbitNotifier struct {
	exchange string
	pub      *rabbit.Publisher
	log      *zap.Logger
}

// NewRabbitNotifier declares the exchange lazily on the first publish.
func NewRabbitNotifier(open func() (rabbit.Channel, error), exchange string, log *zap.Logger) *RabbitNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	setup := func(ch rabbit.Channel) error {
		// Durable so the exchange survives broker restarts.
		return ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil)
	}
	return &RabbitNotifier{exchange: exchange, pub: rabbit.NewPublisher(open, setup), log: log}
}

// NotifyReserved publishes the notification as persistent JSON.
func (n *RabbitNotifier) NotifyReserved(ctx context.Context, res model.Reservation) error {
	body, err := json.Marshal(model.NewReservationNotification(res))
	if err != nil {
		n.log.Error("rabbitmq: marshal notification failed", zap.Error(err))
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         "reservation.confirmed",
		Headers:      amqp.Table{"subject": model.ReservationNotificationSubject},
		Body:         body,
	}
	if err := n.pub.Publish(ctx, n.exchange, "", pub); err != nil {
		n.log.Error("rabbitmq: publish notification failed", zap.String("exchange", n.exchange), zap.Error(err))
		return err
	}
	return nil
}

// Close releases the publishing channel.
func (n *RabbitNotifier) Close() error { return n.pub.Close() }
