package service

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Response messages shared by the HTTP and Lambda adapters.
const (
	MsgMissingBody       = "Missing event body"
	MsgInvalidBody       = "Invalid request body"
	MsgMissingFields     = "Missing required fields"
	MsgQueued            = "Reservation request queued"
	MsgQueueFailed       = "Error queuing reservation"
	MsgReserveForbidden  = "You are not allowed to reserve on behalf of another user"
	MsgMissingCancelKeys = "Missing eventId, seatId or userId"
	MsgCancelled         = "Reservation cancelled successfully"
	MsgCancelForbidden   = "You are not allowed to cancel this reservation"
	MsgCancelFailed      = "Failed to cancel reservation"
	MsgReserved          = "Seat reserved successfully"
	MsgAlreadyReserved   = "Seat already reserved"
	MsgMalformedMessage  = "Malformed reservation message"
	MsgProcessingFailed  = "Error processing reservation"
	MsgDeferred          = "Deferred behind a failed message for the same seat"
	MsgStatusFailed      = "Failed to load seat status"
)

// Body is the JSON payload of every response: {message} or {message, error}.
type Body struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Response is a status code plus body, independent of the transport.
type Response struct {
	StatusCode int
	Body       Body
}

// Encode renders the body as a JSON string (API Gateway and batch results
// carry the body as a string).
func (r Response) Encode() string {
	b, err := json.Marshal(r.Body)
	if err != nil {
		return `{"message":"internal error"}`
	}
	return string(b)
}

// Result is one entry of the aggregate settlement result.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Result converts the response to its batch entry form.
func (r Response) Result() Result {
	return Result{StatusCode: r.StatusCode, Body: r.Encode()}
}

func respond(code int, msg string) Response {
	return Response{StatusCode: code, Body: Body{Message: msg}}
}

func respondErr(code int, msg string, err error) Response {
	return Response{StatusCode: code, Body: Body{Message: msg, Error: detail(err)}}
}

// IntakeResponse maps the outcome of an intake call.
func IntakeResponse(err error) Response {
	var ve *ValidationError
	switch {
	case err == nil:
		return respond(http.StatusOK, MsgQueued)
	case errors.As(err, &ve):
		return respond(http.StatusBadRequest, ve.Reason)
	case errors.Is(err, ErrNotOwner):
		return respond(http.StatusForbidden, MsgReserveForbidden)
	default:
		return respondErr(http.StatusInternalServerError, MsgQueueFailed, err)
	}
}

// CancelResponse maps the outcome of a cancellation call. "Not found" and
// "not yours" share the 403 so seat ownership is never revealed.
func CancelResponse(err error) Response {
	var ve *ValidationError
	switch {
	case err == nil:
		return respond(http.StatusOK, MsgCancelled)
	case errors.As(err, &ve):
		return respond(http.StatusBadRequest, ve.Reason)
	case errors.Is(err, ErrNotOwner):
		return respond(http.StatusForbidden, MsgCancelForbidden)
	default:
		return respondErr(http.StatusInternalServerError, MsgCancelFailed, err)
	}
}

// StatusErrorResponse maps a failed seat-status lookup.
func StatusErrorResponse(err error) Response {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return respond(http.StatusBadRequest, ve.Reason)
	}
	return respondErr(http.StatusInternalServerError, MsgStatusFailed, err)
}
