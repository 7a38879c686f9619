package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
)

// ReservationService serves the direct store paths: owner cancellation
// and the public seat status lookup.
type ReservationService struct {
	store repository.ReservationStore
	log   *zap.Logger
}

func NewReservationService(store repository.ReservationStore, log *zap.Logger) *ReservationService {
	if store == nil {
		panic("nil store passed to NewReservationService")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationService{store: store, log: log}
}

// Cancel deletes the caller's reservation. It returns ErrNotOwner when the
// seat is free or belongs to another user.
func (s *ReservationService) Cancel(ctx context.Context, req model.CancelRequest) error {
	if !req.Complete() {
		return &ValidationError{Reason: MsgMissingCancelKeys}
	}
	fields := []zap.Field{
		zap.String("event_id", req.EventID),
		zap.String("seat_id", req.SeatID),
		zap.String("user_id", req.UserID),
	}
	err := s.store.DeleteIfOwner(ctx, req.EventID, req.SeatID, req.UserID)
	switch {
	case err == nil:
		s.log.Info("reservation cancelled", fields...)
		return nil
	case errors.Is(err, repository.ErrForbidden):
		s.log.Warn("cancellation denied", fields...)
		return ErrNotOwner
	default:
		s.log.Error("cancellation failed", append(fields, zap.Error(err))...)
		return &DependencyError{Op: "delete reservation", Err: err}
	}
}

// SeatStatus reports whether a seat is reserved without revealing by whom.
func (s *ReservationService) SeatStatus(ctx context.Context, eventID, seatID string) (model.SeatStatus, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(seatID) == "" {
		return model.SeatStatus{}, &ValidationError{Reason: "Missing eventId or seatId"}
	}
	st := model.SeatStatus{EventID: eventID, SeatID: seatID}
	res, err := s.store.Get(ctx, eventID, seatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return st, nil
		}
		return model.SeatStatus{}, &DependencyError{Op: "get reservation", Err: err}
	}
	at := res.ReservedAt.UTC().Format(time.RFC3339)
	st.Reserved = true
	st.ReservedAt = &at
	return st, nil
}
