// Package rabbittest provides an in-memory rabbit.Channel for tests.
package rabbittest

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-seat-reservation/internal/rabbit"
)

// Published is one recorded publish call.
type Published struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

// Binding is one recorded QueueBind call.
type Binding struct {
	Queue    string
	Key      string
	Exchange string
}

// FakeChannel records declarations and publishes. Set PublishErr to make
// the next publishes fail. OnPublish runs before each publish; a publish
// whose context is done by then fails with the context error.
type FakeChannel struct {
	OnPublish func()

	mu         sync.Mutex
	Exchanges  map[string]string // name -> kind
	Queues     map[string]amqp.Table
	Bindings   []Binding
	Published  []Published
	PublishErr error
	Closed     bool
}

var _ rabbit.Channel = (*FakeChannel)(nil)

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{Exchanges: map[string]string{}, Queues: map[string]amqp.Table{}}
}

// Opener returns an opener that always hands out this channel and counts
// how often it was called.
func (f *FakeChannel) Opener(opens *int) func() (rabbit.Channel, error) {
	return func() (rabbit.Channel, error) {
		if opens != nil {
			*opens++
		}
		f.mu.Lock()
		f.Closed = false
		f.mu.Unlock()
		return f, nil
	}
}

func (f *FakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Exchanges[name] = kind
	return nil
}

func (f *FakeChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (f *FakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Bindings = append(f.Bindings, Binding{Queue: name, Key: key, Exchange: exchange})
	return nil
}

func (f *FakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.OnPublish != nil {
		f.OnPublish()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Published = append(f.Published, Published{Exchange: exchange, Key: key, Msg: msg})
	return nil
}

func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
