package service

import (
	"bytes"
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// IntakeQueue accepts reservation requests for ordered processing. The
// implementation must use req.GroupKey() for ordering and req.DedupKey()
// for deduplication.
type IntakeQueue interface {
	Enqueue(ctx context.Context, req model.IntakeRequest) error
}

// IntakeService validates reservation requests and hands them to the
// intake queue. A nil error means "accepted for processing", not
// "reserved".
type IntakeService struct {
	queue IntakeQueue
	log   *zap.Logger
}

func NewIntakeService(queue IntakeQueue, log *zap.Logger) *IntakeService {
	if queue == nil {
		panic("nil queue passed to NewIntakeService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IntakeService{queue: queue, log: log}
}

// ParseIntake decodes a raw request body.
func ParseIntake(body []byte) (model.IntakeRequest, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return model.IntakeRequest{}, &ValidationError{Reason: MsgMissingBody}
	}
	var req model.IntakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.IntakeRequest{}, &ValidationError{Reason: MsgInvalidBody}
	}
	return req, nil
}

// Submit enqueues exactly one message for a complete request. Queue
// failures are returned as *DependencyError and never retried here.
func (s *IntakeService) Submit(ctx context.Context, req model.IntakeRequest) error {
	if !req.Complete() {
		return &ValidationError{Reason: MsgMissingFields}
	}
	ctx, span := tracer.Start(ctx, "intake.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("reservation.event_id", req.EventID),
		attribute.String("reservation.seat_id", req.SeatID),
	)
	if err := s.queue.Enqueue(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		s.log.Error("enqueue reservation request failed",
			zap.String("event_id", req.EventID),
			zap.String("seat_id", req.SeatID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		return &DependencyError{Op: "enqueue", Err: err}
	}
	s.log.Info("reservation request queued",
		zap.String("event_id", req.EventID),
		zap.String("seat_id", req.SeatID),
		zap.String("user_id", req.UserID),
		zap.String("group_key", req.GroupKey()),
		zap.String("dedup_key", req.DedupKey()))
	return nil
}
