package rabbit

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher keeps one channel open for publishing and reopens it after a
// failure. Setup runs on every freshly opened channel and declares the
// topology the publisher relies on; declarations are idempotent.
type Publisher struct {
	open  func() (Channel, error)
	setup func(Channel) error

	mu sync.Mutex
	ch Channel
}

func NewPublisher(open func() (Channel, error), setup func(Channel) error) *Publisher {
	return &Publisher{open: open, setup: setup}
}

// Publish sends msg. A failed publish drops the channel so the next call
// starts from a clean one; the error is returned to the caller, which
// decides whether to retry.
func (p *Publisher) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		ch, err := p.open()
		if err != nil {
			return err
		}
		if p.setup != nil {
			if err := p.setup(ch); err != nil {
				_ = ch.Close()
				return err
			}
		}
		p.ch = ch
	}
	if err := p.ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		_ = p.ch.Close()
		p.ch = nil
		return err
	}
	return nil
}

// Close closes the open channel, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
