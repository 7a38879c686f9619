package repository

import (
	"context"
	"sync"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

type seatRef struct {
	eventID string
	seatID  string
}

// MemoryReservationRepo is an in-process store for local runs and tests.
// A single mutex makes each conditional operation atomic.
type MemoryReservationRepo struct {
	mu   sync.Mutex
	rows map[seatRef]model.Reservation
}

func NewMemoryReservationRepo() *MemoryReservationRepo {
	return &MemoryReservationRepo{rows: make(map[seatRef]model.Reservation)}
}

func (r *MemoryReservationRepo) InsertIfAbsent(_ context.Context, res model.Reservation) error {
	k := seatRef{res.EventID, res.SeatID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[k]; ok {
		return ErrConflict
	}
	r.rows[k] = res
	return nil
}

func (r *MemoryReservationRepo) DeleteIfOwner(_ context.Context, eventID, seatID, userID string) error {
	k := seatRef{eventID, seatID}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[k]
	if !ok || cur.UserID != userID {
		return ErrForbidden
	}
	delete(r.rows, k)
	return nil
}

func (r *MemoryReservationRepo) Get(_ context.Context, eventID, seatID string) (model.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[seatRef{eventID, seatID}]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	return res, nil
}

// Len reports the number of committed reservations.
func (r *MemoryReservationRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
