package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	sendErr  error
	receive  *sqs.ReceiveMessageOutput
	received *sqs.ReceiveMessageInput
	deleted  []*sqs.DeleteMessageBatchInput
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	return f.receive, nil
}

func (f *fakeSQS) DeleteMessageBatch(_ context.Context, in *sqs.DeleteMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error) {
	f.deleted = append(f.deleted, in)
	return &sqs.DeleteMessageBatchOutput{}, nil
}

const queueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/reservations.fifo"

func TestSQSQueue_EnqueueUsesGroupAndDedupKeys(t *testing.T) {
	client := &fakeSQS{}
	q := NewSQSQueue(client, queueURL, nil)

	require.NoError(t, q.Enqueue(context.Background(), model.IntakeRequest{EventID: "e1", SeatID: "A1", UserID: "u1"}))

	require.Len(t, client.sent, 1)
	in := client.sent[0]
	assert.Equal(t, queueURL, aws.ToString(in.QueueUrl))
	assert.Equal(t, "A1", aws.ToString(in.MessageGroupId))
	assert.Equal(t, "A1-u1", aws.ToString(in.MessageDeduplicationId))
	assert.JSONEq(t, `{"eventId":"e1","seatId":"A1","userId":"u1"}`, aws.ToString(in.MessageBody))
}

func TestSQSQueue_EnqueueError(t *testing.T) {
	q := NewSQSQueue(&fakeSQS{sendErr: errors.New("AWS.SimpleQueueService.NonExistentQueue")}, queueURL, nil)
	assert.Error(t, q.Enqueue(context.Background(), model.IntakeRequest{EventID: "e1", SeatID: "A1", UserID: "u1"}))
}

func sqsMessage(id, seat string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(`{"eventId":"e1","seatId":"` + seat + `","userId":"u1"}`),
		Attributes:    map[string]string{"MessageGroupId": seat},
	}
}

func TestSQSPoller_DeletesOnlySettledMessages(t *testing.T) {
	client := &fakeSQS{receive: &sqs.ReceiveMessageOutput{Messages: []types.Message{
		sqsMessage("m1", "A1"),
		sqsMessage("m2", "A1"),
		sqsMessage("m3", "B2"),
		sqsMessage("m4", "B2"),
	}}}
	settler := &fakeSettler{outcomes: map[string]service.Outcome{
		"m2": service.OutcomeAlreadyReserved,
		"m3": service.OutcomeFailed,
		"m4": service.OutcomeDeferred,
	}}
	p := NewSQSPoller(client, queueURL, 10, settler, nil)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, int32(10), client.received.MaxNumberOfMessages)
	assert.Equal(t, int32(20), client.received.WaitTimeSeconds)
	assert.Equal(t, "A1", settler.batches[0][0].GroupKey)

	require.Len(t, client.deleted, 1)
	var handles []string
	for _, e := range client.deleted[0].Entries {
		handles = append(handles, aws.ToString(e.ReceiptHandle))
	}
	assert.Equal(t, []string{"rh-m1", "rh-m2"}, handles)
}

func TestSQSPoller_EmptyReceive(t *testing.T) {
	client := &fakeSQS{receive: &sqs.ReceiveMessageOutput{}}
	p := NewSQSPoller(client, queueURL, 10, &fakeSettler{}, nil)

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, client.deleted)
}
