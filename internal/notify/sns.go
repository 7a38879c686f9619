package notify

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// SNSAPI is the subset of *sns.Client used by SNSNotifier.
type SNSAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes to an SNS topic. Email subscribers receive Subject
// and Message; the identifiers are also attached as message attributes so
// subscriptions can filter on them.
type SNSNotifier struct {
	client   SNSAPI
	topicARN string
	log      *zap.Logger
}

func NewSNSNotifier(client SNSAPI, topicARN string, log *zap.Logger) *SNSNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &SNSNotifier{client: client, topicARN: topicARN, log: log}
}

func (n *SNSNotifier) NotifyReserved(ctx context.Context, res model.Reservation) error {
	note := model.NewReservationNotification(res)
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(note.Subject),
		Message:  aws.String(note.Message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventId": stringAttr(note.EventID),
			"seatId":  stringAttr(note.SeatID),
			"userId":  stringAttr(note.UserID),
		},
	})
	if err != nil {
		n.log.Error("sns: publish notification failed", zap.String("topic_arn", n.topicARN), zap.Error(err))
		return err
	}
	n.log.Debug("sns: notification published", zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
