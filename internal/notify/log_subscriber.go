package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/rabbit"
)

// ConfirmationLogQueue is the durable queue bound to the notification
// exchange by the confirmation log subscriber.
const ConfirmationLogQueue = "reservation.confirmed.log"

// LogSubscriber consumes reservation notifications from the fanout exchange
// and appends one line per confirmation to a local file.
type LogSubscriber struct {
	conn     *rabbit.Conn
	exchange string
	path     string
	log      *zap.Logger
}

func NewLogSubscriber(conn *rabbit.Conn, exchange, path string, log *zap.Logger) *LogSubscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSubscriber{conn: conn, exchange: exchange, path: path, log: log}
}

// Run keeps a consumer alive until ctx is cancelled, reconnecting with
// exponential backoff capped at 30s.
func (s *LogSubscriber) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		ch, err := s.conn.Channel()
		if err != nil {
			s.log.Warn("log-subscriber: open channel failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = s.consume(ctx, ch)
		_ = ch.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("log-subscriber: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (s *LogSubscriber) consume(ctx context.Context, ch *amqp.Channel) error {
	if err := ch.Qos(50, 0, false); err != nil {
		s.log.Warn("log-subscriber: set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(s.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(ConfirmationLogQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(ConfirmationLogQueue, "", s.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(ConfirmationLogQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := s.Handle(d.Body); err != nil {
				s.log.Error("log-subscriber: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle appends the confirmation line for one notification body.
func (s *LogSubscriber) Handle(body []byte) error {
	var n model.ReservationNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatConfirmation(n)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatConfirmation renders a notification as a single log line.
func FormatConfirmation(n model.ReservationNotification) string {
	return fmt.Sprintf("[%s] %s | event_id=%s | seat_id=%s | user_id=%s\n",
		n.ReservedAt, n.Subject, n.EventID, n.SeatID, n.UserID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
