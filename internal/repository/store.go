package repository

import (
	"context"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// ReservationStore is the contract every backend implements. Both
// mutations are single atomic conditional operations; implementations
// must not emulate them with a read followed by a write.
type ReservationStore interface {
	// InsertIfAbsent commits res unless (EventID, SeatID) already exists,
	// in which case it returns ErrConflict.
	InsertIfAbsent(ctx context.Context, res model.Reservation) error
	// DeleteIfOwner removes the reservation for (eventID, seatID) only when
	// its owner is userID; otherwise it returns ErrForbidden.
	DeleteIfOwner(ctx context.Context, eventID, seatID, userID string) error
	// Get returns the reservation for a seat or ErrNotFound.
	Get(ctx context.Context, eventID, seatID string) (model.Reservation, error)
}

var (
	_ ReservationStore = (*ReservationRepo)(nil)
	_ ReservationStore = (*PostgresReservationRepo)(nil)
	_ ReservationStore = (*DynamoReservationRepo)(nil)
	_ ReservationStore = (*MemoryReservationRepo)(nil)
)
