package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// SQSAPI is the subset of *sqs.Client used by the SQS driver.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, in *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// SQSQueue sends intake requests to a FIFO queue. Ordering and
// deduplication are native: MessageGroupId is the seat and
// MessageDeduplicationId the (seat, user) pair.
type SQSQueue struct {
	client SQSAPI
	url    string
	log    *zap.Logger
}

func NewSQSQueue(client SQSAPI, url string, log *zap.Logger) *SQSQueue {
	if log == nil {
		log = zap.NewNop()
	}
	return &SQSQueue{client: client, url: url, log: log}
}

func (q *SQSQueue) Enqueue(ctx context.Context, req model.IntakeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.url),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(req.GroupKey()),
		MessageDeduplicationId: aws.String(req.DedupKey()),
	})
	if err != nil {
		return err
	}
	q.log.Debug("sqs: request sent", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// SQSPoller long-polls the FIFO queue and settles what it receives.
// Unsettled messages are left in flight; the visibility timeout returns
// them and the queue's redrive policy moves them to its dead-letter queue.
type SQSPoller struct {
	client    SQSAPI
	url       string
	batchSize int32
	wait      int32
	settler   Settler
	log       *zap.Logger
}

func NewSQSPoller(client SQSAPI, url string, batchSize int, settler Settler, log *zap.Logger) *SQSPoller {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize < 1 || batchSize > 10 {
		batchSize = 10
	}
	return &SQSPoller{client: client, url: url, batchSize: int32(batchSize), wait: 20, settler: settler, log: log}
}

// Run polls until ctx is cancelled.
func (p *SQSPoller) Run(ctx context.Context) error {
	backoff := time.Second
	for ctx.Err() == nil {
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.log.Error("sqs: poll failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				break
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second
	}
	return ctx.Err()
}

// PollOnce receives one batch, settles it and deletes the settled
// messages. It returns the number of messages received.
func (p *SQSPoller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(p.url),
		MaxNumberOfMessages:         p.batchSize,
		WaitTimeSeconds:             p.wait,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameMessageGroupId},
	})
	if err != nil {
		return 0, fmt.Errorf("receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return 0, nil
	}

	msgs := make([]model.QueueMessage, len(out.Messages))
	for i, m := range out.Messages {
		msgs[i] = model.QueueMessage{
			ID:       aws.ToString(m.MessageId),
			GroupKey: m.Attributes[string(types.MessageSystemAttributeNameMessageGroupId)],
			Body:     []byte(aws.ToString(m.Body)),
		}
	}
	results := p.settler.SettleBatch(ctx, msgs)

	var entries []types.DeleteMessageBatchRequestEntry
	for i, st := range results {
		if st.Failed() {
			p.log.Warn("sqs: message left for redrive",
				zap.String("message_id", st.MessageID),
				zap.Stringer("outcome", st.Outcome))
			continue
		}
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: out.Messages[i].ReceiptHandle,
		})
	}
	if len(entries) == 0 {
		return len(out.Messages), nil
	}
	del, err := p.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(p.url),
		Entries:  entries,
	})
	if err != nil {
		return len(out.Messages), fmt.Errorf("delete batch: %w", err)
	}
	for _, f := range del.Failed {
		p.log.Error("sqs: delete failed",
			zap.String("entry_id", aws.ToString(f.Id)),
			zap.String("code", aws.ToString(f.Code)),
			zap.String("reason", aws.ToString(f.Message)))
	}
	return len(out.Messages), nil
}
