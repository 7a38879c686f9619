package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/rabbit"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// RabbitMQ has no message groups, so a seat's messages are pinned to one of
// N partition queues by hashing the group key. Each partition queue has a
// single active consumer, which keeps per-seat order across worker
// replicas. Rejected messages go to <name>.dlq through <name>.dlx.

// PartitionQueue names partition i of the intake queue.
func PartitionQueue(name string, i int) string {
	return fmt.Sprintf("%s.%d", name, i)
}

func partitionFor(groupKey string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(groupKey))
	return int(h.Sum32() % uint32(n))
}

// DeclareTopology declares the partition queues, the dead-letter exchange
// and the dead-letter queue. Declarations are idempotent.
func DeclareTopology(ch rabbit.Channel, name string, partitions int) error {
	dlx, dlq := name+".dlx", name+".dlq"
	if err := ch.ExchangeDeclare(dlx, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare %s: %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, name, dlx, false, nil); err != nil {
		return fmt.Errorf("queue bind %s: %w", dlq, err)
	}
	args := amqp.Table{
		"x-single-active-consumer":  true,
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": name,
	}
	for i := 0; i < partitions; i++ {
		q := PartitionQueue(name, i)
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
	}
	return nil
}

// RabbitQueue publishes intake requests to the partition queues.
type RabbitQueue struct {
	name       string
	partitions int
	pub        *rabbit.Publisher
	dedup      *Deduper
	log        *zap.Logger
}

func NewRabbitQueue(open func() (rabbit.Channel, error), name string, partitions int, dedup *Deduper, log *zap.Logger) *RabbitQueue {
	if log == nil {
		log = zap.NewNop()
	}
	if partitions < 1 {
		partitions = 1
	}
	setup := func(ch rabbit.Channel) error { return DeclareTopology(ch, name, partitions) }
	return &RabbitQueue{
		name:       name,
		partitions: partitions,
		pub:        rabbit.NewPublisher(open, setup),
		dedup:      dedup,
		log:        log,
	}
}

func (q *RabbitQueue) Enqueue(ctx context.Context, req model.IntakeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	key := req.DedupKey()
	if !q.dedup.Claim(ctx, key) {
		q.log.Info("rabbitmq: duplicate submission dropped", zap.String("dedup_key", key))
		return nil
	}
	target := PartitionQueue(q.name, partitionFor(req.GroupKey(), q.partitions))
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Headers: amqp.Table{
			headerGroupKey: req.GroupKey(),
			headerDedupKey: key,
		},
		Body: body,
	}
	if err := q.pub.Publish(ctx, "", target, msg); err != nil {
		q.dedup.Release(ctx, key)
		return fmt.Errorf("publish to %s: %w", target, err)
	}
	return nil
}

func (q *RabbitQueue) Close() error { return q.pub.Close() }

// RabbitConsumer runs one consumer per partition queue.
type RabbitConsumer struct {
	conn       *rabbit.Conn
	name       string
	partitions int
	batchSize  int
	batchWait  time.Duration
	settler    Settler
	log        *zap.Logger
}

func NewRabbitConsumer(conn *rabbit.Conn, name string, partitions, batchSize int, batchWait time.Duration, settler Settler, log *zap.Logger) *RabbitConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &RabbitConsumer{
		conn:       conn,
		name:       name,
		partitions: partitions,
		batchSize:  batchSize,
		batchWait:  batchWait,
		settler:    settler,
		log:        log,
	}
}

// Run blocks until ctx is cancelled.
func (c *RabbitConsumer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < c.partitions; i++ {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			c.runPartition(ctx, queue)
		}(PartitionQueue(c.name, i))
	}
	wg.Wait()
	return ctx.Err()
}

func (c *RabbitConsumer) runPartition(ctx context.Context, queue string) {
	log := c.log.With(zap.String("queue", queue))
	backoff := time.Second
	for ctx.Err() == nil {
		ch, err := c.conn.Channel()
		if err != nil {
			log.Warn("rabbitmq: open channel failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, ch, queue)
		_ = ch.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("rabbitmq: consume loop ended; reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *RabbitConsumer) consume(ctx context.Context, ch *amqp.Channel, queue string) error {
	if err := DeclareTopology(ch, c.name, c.partitions); err != nil {
		return err
	}
	if err := ch.Qos(c.batchSize, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	for {
		batch, open := collect(ctx, deliveries, c.batchSize, c.batchWait)
		if len(batch) > 0 {
			c.Handle(ctx, batch)
		}
		if !open {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("deliveries channel closed")
		}
	}
}

// Handle settles a batch and acknowledges each delivery on its own. A
// failed delivery is requeued once, in place; on its second failure (or
// when it is malformed) it is dead-lettered. Deferred siblings follow the
// same rule, so they reach the dead-letter queue after the message they
// were waiting on.
func (c *RabbitConsumer) Handle(ctx context.Context, ds []amqp.Delivery) {
	msgs := make([]model.QueueMessage, len(ds))
	for i, d := range ds {
		msgs[i] = deliveryMessage(d)
	}
	results := c.settler.SettleBatch(ctx, msgs)
	for i, st := range results {
		d := ds[i]
		if !st.Failed() {
			if err := d.Ack(false); err != nil {
				c.log.Error("rabbitmq: ack failed", zap.String("message_id", st.MessageID), zap.Error(err))
			}
			continue
		}
		requeue := st.Outcome != service.OutcomeMalformed && !d.Redelivered
		if err := d.Nack(false, requeue); err != nil {
			c.log.Error("rabbitmq: nack failed", zap.String("message_id", st.MessageID), zap.Error(err))
		}
		c.log.Warn("rabbitmq: message not settled",
			zap.String("message_id", st.MessageID),
			zap.Stringer("outcome", st.Outcome),
			zap.Bool("requeued", requeue))
	}
}

func deliveryMessage(d amqp.Delivery) model.QueueMessage {
	id := d.MessageId
	if id == "" {
		id = fmt.Sprintf("%s#%d", d.RoutingKey, d.DeliveryTag)
	}
	group, _ := d.Headers[headerGroupKey].(string)
	return model.QueueMessage{ID: id, GroupKey: group, Body: d.Body}
}
