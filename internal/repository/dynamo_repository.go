package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoReservationRepo.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// reservationItem is the table layout: partition key eventId, sort key
// seatId, reservedAt as an ISO-8601 string.
type reservationItem struct {
	EventID    string `dynamodbav:"eventId"`
	SeatID     string `dynamodbav:"seatId"`
	UserID     string `dynamodbav:"userId"`
	ReservedAt string `dynamodbav:"reservedAt"`
}

// DynamoReservationRepo stores reservations in a DynamoDB table. Both
// mutations use condition expressions, which DynamoDB evaluates atomically
// with the write.
type DynamoReservationRepo struct {
	client DynamoAPI
	table  string
}

func NewDynamoReservationRepo(client DynamoAPI, table string) *DynamoReservationRepo {
	return &DynamoReservationRepo{client: client, table: table}
}

func (r *DynamoReservationRepo) InsertIfAbsent(ctx context.Context, res model.Reservation) error {
	in, err := r.putInput(res)
	if err != nil {
		return err
	}
	if _, err := r.client.PutItem(ctx, in); err != nil {
		if isConditionalCheckFailed(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *DynamoReservationRepo) DeleteIfOwner(ctx context.Context, eventID, seatID, userID string) error {
	if _, err := r.client.DeleteItem(ctx, r.deleteInput(eventID, seatID, userID)); err != nil {
		if isConditionalCheckFailed(err) {
			return ErrForbidden
		}
		return err
	}
	return nil
}

func (r *DynamoReservationRepo) Get(ctx context.Context, eventID, seatID string) (model.Reservation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            seatKey(eventID, seatID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if len(out.Item) == 0 {
		return model.Reservation{}, ErrNotFound
	}
	var item reservationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return model.Reservation{}, fmt.Errorf("unmarshal reservation: %w", err)
	}
	res := model.Reservation{EventID: item.EventID, SeatID: item.SeatID, UserID: item.UserID}
	if t, err := time.Parse(time.RFC3339Nano, item.ReservedAt); err == nil {
		res.ReservedAt = t.UTC()
	}
	return res, nil
}

func (r *DynamoReservationRepo) putInput(res model.Reservation) (*dynamodb.PutItemInput, error) {
	item, err := attributevalue.MarshalMap(reservationItem{
		EventID:    res.EventID,
		SeatID:     res.SeatID,
		UserID:     res.UserID,
		ReservedAt: res.ReservedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal reservation: %w", err)
	}
	return &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(seatId)"),
	}, nil
}

func (r *DynamoReservationRepo) deleteInput(eventID, seatID, userID string) *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 seatKey(eventID, seatID),
		ConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
	}
}

func seatKey(eventID, seatID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"eventId": &types.AttributeValueMemberS{Value: eventID},
		"seatId":  &types.AttributeValueMemberS{Value: seatID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
