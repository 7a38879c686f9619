package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY, raised when the primary key
// (event_id, seat_id) is already taken.
const mysqlDuplicateEntry = 1062

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// ReservationRepo stores reservations in a MySQL table keyed by
// (event_id, seat_id).  The primary key is the uniqueness guarantee:
// concurrent inserts for the same seat are serialized by InnoDB and all
// but one fail with a duplicate-key error.  All timestamps are stored in
// UTC.
type ReservationRepo struct {
	db    *sql.DB
	table string
}

// NewReservationRepo returns a ReservationRepo bound to the given database
// and table.  The table name is interpolated into SQL, so it is restricted
// to letters, digits and underscores.
func NewReservationRepo(db *sql.DB, table string) (*ReservationRepo, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ReservationRepo{db: db, table: table}, nil
}

// EnsureSchema creates the reservations table when it does not exist.
func (r *ReservationRepo) EnsureSchema(ctx context.Context) error {
	q := "CREATE TABLE IF NOT EXISTS `" + r.table + "` (" +
		"event_id VARCHAR(191) NOT NULL," +
		"seat_id VARCHAR(191) NOT NULL," +
		"user_id VARCHAR(191) NOT NULL," +
		"reserved_at DATETIME(3) NOT NULL," +
		"PRIMARY KEY (event_id, seat_id)" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// InsertIfAbsent inserts the reservation.  A duplicate primary key means
// the seat is already reserved and is reported as ErrConflict.
func (r *ReservationRepo) InsertIfAbsent(ctx context.Context, res model.Reservation) error {
	q := "INSERT INTO `" + r.table + "` (event_id, seat_id, user_id, reserved_at) VALUES (?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, q, res.EventID, res.SeatID, res.UserID, res.ReservedAt.UTC())
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// DeleteIfOwner deletes the row only when user_id matches.  Zero affected
// rows covers both a missing reservation and a foreign owner.
func (r *ReservationRepo) DeleteIfOwner(ctx context.Context, eventID, seatID, userID string) error {
	q := "DELETE FROM `" + r.table + "` WHERE event_id = ? AND seat_id = ? AND user_id = ?"
	result, err := r.db.ExecContext(ctx, q, eventID, seatID, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}

// Get returns the reservation for a seat or ErrNotFound.
func (r *ReservationRepo) Get(ctx context.Context, eventID, seatID string) (model.Reservation, error) {
	q := "SELECT user_id, reserved_at FROM `" + r.table + "` WHERE event_id = ? AND seat_id = ?"
	res := model.Reservation{EventID: eventID, SeatID: seatID}
	var reservedAt time.Time
	if err := r.db.QueryRowContext(ctx, q, eventID, seatID).Scan(&res.UserID, &reservedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, err
	}
	res.ReservedAt = reservedAt.UTC()
	return res, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
