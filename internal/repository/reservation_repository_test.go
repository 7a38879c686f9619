package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo, err := NewReservationRepo(db, "reservations")
	require.NoError(t, err)
	return repo, mock
}

func TestNewReservationRepo_RejectsUnsafeTableName(t *testing.T) {
	_, err := NewReservationRepo(nil, "reservations; DROP TABLE x")
	assert.Error(t, err)
}

func TestReservationRepo_InsertIfAbsent(t *testing.T) {
	const q = "INSERT INTO `reservations` (event_id, seat_id, user_id, reserved_at) VALUES (?, ?, ?, ?)"

	t.Run("inserted", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(q)).
			WithArgs("E1", "S1", "U1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.InsertIfAbsent(context.Background(), reservation("E1", "S1", "U1")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate key is a conflict", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(q)).
			WithArgs("E1", "S1", "U2", sqlmock.AnyArg()).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'E1-S1' for key 'PRIMARY'"})

		err := repo.InsertIfAbsent(context.Background(), reservation("E1", "S1", "U2"))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		boom := errors.New("connection reset")
		mock.ExpectExec(regexp.QuoteMeta(q)).WillReturnError(boom)

		err := repo.InsertIfAbsent(context.Background(), reservation("E1", "S1", "U1"))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrConflict)
	})
}

func TestReservationRepo_DeleteIfOwner(t *testing.T) {
	const q = "DELETE FROM `reservations` WHERE event_id = ? AND seat_id = ? AND user_id = ?"

	t.Run("owner deletes", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(q)).WithArgs("E1", "S1", "U1").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, repo.DeleteIfOwner(context.Background(), "E1", "S1", "U1"))
	})

	t.Run("no matching row is forbidden", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(q)).WithArgs("E1", "S1", "U2").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, repo.DeleteIfOwner(context.Background(), "E1", "S1", "U2"), ErrForbidden)
	})
}

func TestReservationRepo_Get(t *testing.T) {
	const q = "SELECT user_id, reserved_at FROM `reservations` WHERE event_id = ? AND seat_id = ?"
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(q)).WithArgs("E1", "S1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "reserved_at"}).AddRow("U1", at))
	got, err := repo.Get(context.Background(), "E1", "S1")
	require.NoError(t, err)
	assert.Equal(t, "U1", got.UserID)
	assert.True(t, got.ReservedAt.Equal(at))

	mock.ExpectQuery(regexp.QuoteMeta(q)).WithArgs("E1", "S2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "reserved_at"}))
	_, err = repo.Get(context.Background(), "E1", "S2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationRepo_EnsureSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `reservations`")).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, repo.EnsureSchema(context.Background()))
}
