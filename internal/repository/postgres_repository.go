package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

// PgxQuerier is the part of *pgxpool.Pool the repository uses.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresReservationRepo stores reservations in a Postgres table whose
// primary key is (event_id, seat_id).
type PostgresReservationRepo struct {
	db    PgxQuerier
	table string // quoted identifier
}

func NewPostgresReservationRepo(db PgxQuerier, table string) (*PostgresReservationRepo, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresReservationRepo{db: db, table: pgx.Identifier{table}.Sanitize()}, nil
}

func (r *PostgresReservationRepo) EnsureSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + r.table + ` (
		event_id    TEXT        NOT NULL,
		seat_id     TEXT        NOT NULL,
		user_id     TEXT        NOT NULL,
		reserved_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (event_id, seat_id)
	)`
	_, err := r.db.Exec(ctx, q)
	return err
}

// InsertIfAbsent inserts the row; a unique violation is ErrConflict.
func (r *PostgresReservationRepo) InsertIfAbsent(ctx context.Context, res model.Reservation) error {
	q := `INSERT INTO ` + r.table + ` (event_id, seat_id, user_id, reserved_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, q, res.EventID, res.SeatID, res.UserID, res.ReservedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *PostgresReservationRepo) DeleteIfOwner(ctx context.Context, eventID, seatID, userID string) error {
	q := `DELETE FROM ` + r.table + ` WHERE event_id = $1 AND seat_id = $2 AND user_id = $3`
	tag, err := r.db.Exec(ctx, q, eventID, seatID, userID)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrForbidden
	}
	return nil
}

func (r *PostgresReservationRepo) Get(ctx context.Context, eventID, seatID string) (model.Reservation, error) {
	q := `SELECT user_id, reserved_at FROM ` + r.table + ` WHERE event_id = $1 AND seat_id = $2`
	res := model.Reservation{EventID: eventID, SeatID: seatID}
	var reservedAt time.Time
	if err := r.db.QueryRow(ctx, q, eventID, seatID).Scan(&res.UserID, &reservedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	res.ReservedAt = reservedAt.UTC()
	return res, nil
}
