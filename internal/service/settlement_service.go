package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

var tracer = otel.Tracer("github.com/iliyamo/event-seat-reservation/internal/service")

// Notifier publishes a success notification for a committed reservation.
type Notifier interface {
	NotifyReserved(ctx context.Context, res model.Reservation) error
}

// Outcome classifies how one queued message was settled.
type Outcome int

const (
	OutcomeReserved        Outcome = iota // committed
	OutcomeAlreadyReserved                // uniqueness conflict, final
	OutcomeMalformed                      // body could not be decoded, final for this attempt
	OutcomeFailed                         // store error, redrive decides
	OutcomeDeferred                       // skipped behind a failed message of the same seat
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReserved:
		return "reserved"
	case OutcomeAlreadyReserved:
		return "already_reserved"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeFailed:
		return "failed"
	case OutcomeDeferred:
		return "deferred"
	}
	return "unknown"
}

// Settlement is the per-message result of a batch.
type Settlement struct {
	MessageID string
	Outcome   Outcome
	Response  Response
}

// Failed reports whether the delivery layer must treat the message as not
// processed (nack, keep in queue, or report as a batch item failure).
// A conflict is a settled business rejection and is acknowledged.
func (s Settlement) Failed() bool {
	return s.Outcome == OutcomeMalformed || s.Outcome == OutcomeFailed || s.Outcome == OutcomeDeferred
}

// SettlementService commits queued reservation requests.
type SettlementService struct {
	store    repository.ReservationStore
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewSettlementService(store repository.ReservationStore, notifier Notifier, log *zap.Logger) *SettlementService {
	if store == nil || notifier == nil {
		panic("nil dependency passed to NewSettlementService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementService{store: store, notifier: notifier, log: log, now: time.Now}
}

// WithClock replaces the commit clock; used by tests.
func (s *SettlementService) WithClock(now func() time.Time) *SettlementService {
	s.now = now
	return s
}

// DecodeIntakeMessage parses a queued message body.
func DecodeIntakeMessage(body []byte) (model.IntakeRequest, error) {
	var req model.IntakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return model.IntakeRequest{}, err
	}
	if !req.Complete() {
		return model.IntakeRequest{}, errors.New("missing eventId, seatId or userId")
	}
	return req, nil
}

// SettleBatch settles every message independently and returns one
// Settlement per message, in input order. A conflict or failure never
// hides the result of a sibling. Once a message for a seat fails with a
// retryable error, later messages for that seat in the same batch are
// deferred so a redelivery keeps them in submission order.
func (s *SettlementService) SettleBatch(ctx context.Context, msgs []model.QueueMessage) []Settlement {
	ctx, span := tracer.Start(ctx, "settlement.batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(msgs)))

	out := make([]Settlement, 0, len(msgs))
	blocked := make(map[string]bool)
	for _, msg := range msgs {
		req, decodeErr := DecodeIntakeMessage(msg.Body)
		group := msg.GroupKey
		if group == "" && decodeErr == nil {
			group = req.GroupKey()
		}
		if group != "" && blocked[group] {
			s.log.Warn("settlement deferred",
				zap.String("message_id", msg.ID),
				zap.String("group_key", group))
			out = append(out, Settlement{
				MessageID: msg.ID,
				Outcome:   OutcomeDeferred,
				Response:  respond(http.StatusServiceUnavailable, MsgDeferred),
			})
			continue
		}
		st := s.settle(ctx, msg, req, decodeErr)
		if st.Outcome == OutcomeFailed && group != "" {
			blocked[group] = true
		}
		out = append(out, st)
	}
	return out
}

// Settle settles a single message.
func (s *SettlementService) Settle(ctx context.Context, msg model.QueueMessage) Settlement {
	req, err := DecodeIntakeMessage(msg.Body)
	return s.settle(ctx, msg, req, err)
}

func (s *SettlementService) settle(ctx context.Context, msg model.QueueMessage, req model.IntakeRequest, decodeErr error) (st Settlement) {
	ctx, span := tracer.Start(ctx, "settlement.settle")
	span.SetAttributes(attribute.String("message.id", msg.ID))
	defer func() {
		span.SetAttributes(attribute.String("settlement.outcome", st.Outcome.String()))
		if st.Failed() {
			span.SetStatus(codes.Error, st.Outcome.String())
		}
		span.End()
	}()

	if decodeErr != nil {
		s.log.Error("malformed reservation message",
			zap.String("message_id", msg.ID),
			zap.Error(decodeErr))
		return Settlement{
			MessageID: msg.ID,
			Outcome:   OutcomeMalformed,
			Response:  Response{StatusCode: http.StatusBadRequest, Body: Body{Message: MsgMalformedMessage, Error: decodeErr.Error()}},
		}
	}

	res := req.Reservation(s.now())
	fields := []zap.Field{
		zap.String("message_id", msg.ID),
		zap.String("event_id", res.EventID),
		zap.String("seat_id", res.SeatID),
		zap.String("user_id", res.UserID),
	}

	if err := s.store.InsertIfAbsent(ctx, res); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.log.Warn("seat already reserved", fields...)
			return Settlement{
				MessageID: msg.ID,
				Outcome:   OutcomeAlreadyReserved,
				Response:  respond(http.StatusConflict, MsgAlreadyReserved),
			}
		}
		s.log.Error("reservation commit failed", append(fields, zap.Error(err))...)
		return Settlement{
			MessageID: msg.ID,
			Outcome:   OutcomeFailed,
			Response:  respondErr(http.StatusInternalServerError, MsgProcessingFailed, &DependencyError{Op: "insert reservation", Err: err}),
		}
	}
	s.log.Info("seat reserved", fields...)

	// The reservation is committed; a lost notification must not turn it
	// into a redelivery that would only hit the uniqueness check.
	if err := s.notifier.NotifyReserved(ctx, res); err != nil {
		s.log.Warn("reservation notification failed", append(fields, zap.Error(err))...)
	}
	return Settlement{
		MessageID: msg.ID,
		Outcome:   OutcomeReserved,
		Response:  respond(http.StatusOK, MsgReserved),
	}
}

// Results converts settlements to the aggregate {results:[...]} entries.
func Results(ss []Settlement) []Result {
	out := make([]Result, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Response.Result())
	}
	return out
}
