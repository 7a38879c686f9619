// Package lambdafn adapts the reservation services to AWS Lambda: two API
// Gateway proxy handlers (reserve, cancel) and one SQS handler (process).
package lambdafn

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// Handlers holds the services behind the three functions. Fields may be
// nil when the function that needs them is not deployed.
type Handlers struct {
	Intake       *service.IntakeService
	Settlement   *service.SettlementService
	Reservations *service.ReservationService
	Log          *zap.Logger
}

// ProcessResponse is the SQS handler result: the aggregate per-message
// results as a JSON string body, plus the partial batch failures that make
// Lambda return only unsettled messages to the queue.
type ProcessResponse struct {
	StatusCode        int                          `json:"statusCode"`
	Body              string                       `json:"body"`
	BatchItemFailures []events.SQSBatchItemFailure `json:"batchItemFailures"`
}

func proxy(r service.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       r.Encode(),
	}
}

// Reserve validates the request body and enqueues it.
func (h *Handlers) Reserve(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	in, err := service.ParseIntake([]byte(req.Body))
	if err != nil {
		return proxy(service.IntakeResponse(err)), nil
	}
	return proxy(service.IntakeResponse(h.Intake.Submit(ctx, in))), nil
}

// Cancel reads eventId, seatId and userId from the query string.
func (h *Handlers) Cancel(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	q := req.QueryStringParameters
	err := h.Reservations.Cancel(ctx, model.CancelRequest{
		EventID: q["eventId"],
		SeatID:  q["seatId"],
		UserID:  q["userId"],
	})
	return proxy(service.CancelResponse(err)), nil
}

// Process settles an SQS batch. It never returns an error: every message
// gets its own result and failures are reported per item.
func (h *Handlers) Process(ctx context.Context, ev events.SQSEvent) (ProcessResponse, error) {
	msgs := make([]model.QueueMessage, len(ev.Records))
	for i, r := range ev.Records {
		msgs[i] = model.QueueMessage{
			ID:       r.MessageId,
			GroupKey: r.Attributes["MessageGroupId"],
			Body:     []byte(r.Body),
		}
	}
	settled := h.Settlement.SettleBatch(ctx, msgs)

	failures := []events.SQSBatchItemFailure{}
	for _, st := range settled {
		if st.Failed() {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: st.MessageID})
		}
	}
	body, err := json.Marshal(struct {
		Results []service.Result `json:"results"`
	}{service.Results(settled)})
	if err != nil {
		return ProcessResponse{}, err
	}
	if h.Log != nil && len(failures) > 0 {
		h.Log.Warn("batch settled with failures", zap.Int("records", len(msgs)), zap.Int("failures", len(failures)))
	}
	return ProcessResponse{StatusCode: 200, Body: string(body), BatchItemFailures: failures}, nil
}
