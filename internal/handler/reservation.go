package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/middleware"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// Intake accepts reservation requests for queued settlement.
type Intake interface {
	Submit(ctx context.Context, req model.IntakeRequest) error
}

// Reservations serves the direct store operations.
type Reservations interface {
	Cancel(ctx context.Context, req model.CancelRequest) error
	SeatStatus(ctx context.Context, eventID, seatID string) (model.SeatStatus, error)
}

// ReservationHandler exposes intake, cancellation and seat status over HTTP.
// When JWTAuth ran before it, the token subject must match the request's
// userId.
type ReservationHandler struct {
	intake       Intake
	reservations Reservations
}

func NewReservationHandler(intake Intake, reservations Reservations) *ReservationHandler {
	if intake == nil || reservations == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{intake: intake, reservations: reservations}
}

// Reserve handles POST /reserve. A 200 means the request was queued, not
// that the seat is held.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return write(c, service.IntakeResponse(&service.ValidationError{Reason: service.MsgInvalidBody}))
	}
	req, err := service.ParseIntake(body)
	if err != nil {
		return write(c, service.IntakeResponse(err))
	}
	if !subjectMatches(c, req.UserID) {
		return write(c, service.IntakeResponse(service.ErrNotOwner))
	}
	return write(c, service.IntakeResponse(h.intake.Submit(c.Request().Context(), req)))
}

// Cancel handles POST /cancel and DELETE /reservations with eventId,
// seatId and userId as query parameters.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	req := model.CancelRequest{
		EventID: c.QueryParam("eventId"),
		SeatID:  c.QueryParam("seatId"),
		UserID:  c.QueryParam("userId"),
	}
	if !subjectMatches(c, req.UserID) {
		return write(c, service.CancelResponse(service.ErrNotOwner))
	}
	return write(c, service.CancelResponse(h.reservations.Cancel(c.Request().Context(), req)))
}

// SeatStatus handles GET /reservations/:eventId/:seatId.
func (h *ReservationHandler) SeatStatus(c echo.Context) error {
	st, err := h.reservations.SeatStatus(c.Request().Context(), c.Param("eventId"), c.Param("seatId"))
	if err != nil {
		return write(c, service.StatusErrorResponse(err))
	}
	return c.JSON(http.StatusOK, st)
}

func write(c echo.Context, r service.Response) error {
	return c.JSON(r.StatusCode, r.Body)
}

// subjectMatches is true for unauthenticated requests, and for requests
// without a userId (validation reports those).
func subjectMatches(c echo.Context, userID string) bool {
	sub, ok := c.Get(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		return true
	}
	return sub == userID
}
