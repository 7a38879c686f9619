package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// NewSaramaConfig returns the client config shared by the intake producer,
// the settlement consumer group and the dead-letter producer.
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategySticky
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	return config
}

// DeadLetterTopic names the topic unsettled messages are copied to.
func DeadLetterTopic(topic string) string { return topic + ".dlq" }

// KafkaQueue produces intake requests keyed by seat, so all requests for a
// seat land on one partition in submission order.
type KafkaQueue struct {
	producer sarama.SyncProducer
	topic    string
	dedup    *Deduper
	log      *zap.Logger
}

func NewKafkaQueue(producer sarama.SyncProducer, topic string, dedup *Deduper, log *zap.Logger) *KafkaQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaQueue{producer: producer, topic: topic, dedup: dedup, log: log}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, req model.IntakeRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	key := req.DedupKey()
	if !q.dedup.Claim(ctx, key) {
		q.log.Info("kafka: duplicate submission dropped", zap.String("dedup_key", key))
		return nil
	}
	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(req.GroupKey()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerDedupKey), Value: []byte(key)},
		},
	}
	partition, offset, err := q.producer.SendMessage(msg)
	if err != nil {
		q.dedup.Release(ctx, key)
		return fmt.Errorf("failed to send message: %w", err)
	}
	q.log.Debug("kafka: request produced",
		zap.String("topic", q.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (q *KafkaQueue) Close() error { return q.producer.Close() }

// KafkaConsumer settles intake messages as a consumer group member.
// Offsets only move forward, so an unsettled message is copied to the
// dead-letter topic before its offset is marked.
type KafkaConsumer struct {
	group     sarama.ConsumerGroup
	topic     string
	dlq       sarama.SyncProducer
	batchSize int
	batchWait time.Duration
	settler   Settler
	log       *zap.Logger
}

func NewKafkaConsumer(group sarama.ConsumerGroup, topic string, dlq sarama.SyncProducer, batchSize int, batchWait time.Duration, settler Settler, log *zap.Logger) *KafkaConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaConsumer{
		group:     group,
		topic:     topic,
		dlq:       dlq,
		batchSize: batchSize,
		batchWait: batchWait,
		settler:   settler,
		log:       log,
	}
}

// Run joins the group and consumes until ctx is cancelled or the group is
// closed. Consume returns on every rebalance and is called again.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := c.group.Consume(ctx, []string{c.topic}, c)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.log.Error("kafka: consume failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
	}
}

func (c *KafkaConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *KafkaConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		batch, open := collect(ctx, claim.Messages(), c.batchSize, c.batchWait)
		if len(batch) > 0 {
			if err := c.handle(ctx, session, batch); err != nil {
				return err
			}
		}
		if !open {
			return nil
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, session sarama.ConsumerGroupSession, batch []*sarama.ConsumerMessage) error {
	msgs := make([]model.QueueMessage, len(batch))
	for i, m := range batch {
		msgs[i] = model.QueueMessage{
			ID:       fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
			GroupKey: string(m.Key),
			Body:     m.Value,
		}
	}
	results := c.settler.SettleBatch(ctx, msgs)
	for i, st := range results {
		m := batch[i]
		if st.Failed() {
			if err := c.deadLetter(m, st.Outcome.String()); err != nil {
				// Leave the offset unmarked; the next session starts here.
				c.log.Error("kafka: dead-letter publish failed", zap.String("message_id", st.MessageID), zap.Error(err))
				return err
			}
			c.log.Warn("kafka: message dead-lettered",
				zap.String("message_id", st.MessageID),
				zap.Stringer("outcome", st.Outcome))
		}
		session.MarkMessage(m, "")
	}
	return nil
}

func (c *KafkaConsumer) deadLetter(m *sarama.ConsumerMessage, outcome string) error {
	headers := make([]sarama.RecordHeader, 0, len(m.Headers)+1)
	for _, h := range m.Headers {
		if h != nil {
			headers = append(headers, *h)
		}
	}
	headers = append(headers, sarama.RecordHeader{Key: []byte(headerOutcome), Value: []byte(outcome)})
	_, _, err := c.dlq.SendMessage(&sarama.ProducerMessage{
		Topic:   DeadLetterTopic(m.Topic),
		Key:     sarama.ByteEncoder(m.Key),
		Value:   sarama.ByteEncoder(m.Value),
		Headers: headers,
	})
	return err
}
