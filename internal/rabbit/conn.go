// Package rabbit holds the AMQP connection shared by the intake queue, the
// notification publisher and the confirmation log subscriber.
package rabbit

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel used by publishers. Consumers use
// *amqp.Channel directly.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Conn lazily dials the broker and re-dials after the connection drops.
type Conn struct {
	url  string
	mu   sync.Mutex
	conn *amqp.Connection
}

func NewConn(url string) *Conn {
	return &Conn{url: url}
}

// Channel opens a new channel, dialing first when there is no live
// connection.
func (c *Conn) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		c.conn = conn
	}
	ch, err := c.conn.Channel()
	if err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection if one is open.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Opener adapts Conn.Channel to the Channel interface.
func (c *Conn) Opener() func() (Channel, error) {
	return func() (Channel, error) {
		ch, err := c.Channel()
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}
