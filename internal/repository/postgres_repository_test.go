package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs   []execCall
	tag     pgconn.CommandTag
	execErr error
	row     pgx.Row
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return f.tag, f.execErr
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return f.row
}

type fakeRow struct {
	userID     string
	reservedAt time.Time
	err        error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.userID
	*dest[1].(*time.Time) = r.reservedAt
	return nil
}

func newPgRepo(t *testing.T, q *fakeQuerier) *PostgresReservationRepo {
	t.Helper()
	repo, err := NewPostgresReservationRepo(q, "reservations")
	require.NoError(t, err)
	return repo
}

func TestNewPostgresReservationRepo_RejectsUnsafeTableName(t *testing.T) {
	_, err := NewPostgresReservationRepo(&fakeQuerier{}, `x"; DROP TABLE y`)
	assert.Error(t, err)
}

func TestPostgresRepo_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()

	t.Run("inserted", func(t *testing.T) {
		q := &fakeQuerier{tag: pgconn.NewCommandTag("INSERT 0 1")}
		require.NoError(t, newPgRepo(t, q).InsertIfAbsent(ctx, reservation("E1", "S1", "U1")))
		require.Len(t, q.execs, 1)
		assert.Contains(t, q.execs[0].sql, `INSERT INTO "reservations"`)
		assert.Equal(t, []any{"E1", "S1", "U1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}, q.execs[0].args)
	})

	t.Run("unique violation is a conflict", func(t *testing.T) {
		q := &fakeQuerier{execErr: &pgconn.PgError{Code: "23505"}}
		err := newPgRepo(t, q).InsertIfAbsent(ctx, reservation("E1", "S1", "U2"))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		q := &fakeQuerier{execErr: errors.New("connection reset")}
		err := newPgRepo(t, q).InsertIfAbsent(ctx, reservation("E1", "S1", "U1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrConflict)
	})
}

func TestPostgresRepo_DeleteIfOwner(t *testing.T) {
	ctx := context.Background()

	q := &fakeQuerier{tag: pgconn.NewCommandTag("DELETE 1")}
	require.NoError(t, newPgRepo(t, q).DeleteIfOwner(ctx, "E1", "S1", "U1"))
	assert.Contains(t, q.execs[0].sql, "user_id = $3")

	q = &fakeQuerier{tag: pgconn.NewCommandTag("DELETE 0")}
	assert.ErrorIs(t, newPgRepo(t, q).DeleteIfOwner(ctx, "E1", "S1", "U2"), ErrForbidden)
}

func TestPostgresRepo_Get(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.FixedZone("x", 3600))

	q := &fakeQuerier{row: fakeRow{userID: "U1", reservedAt: at}}
	res, err := newPgRepo(t, q).Get(ctx, "E1", "S1")
	require.NoError(t, err)
	assert.Equal(t, "U1", res.UserID)
	assert.Equal(t, time.UTC, res.ReservedAt.Location())
	assert.True(t, at.Equal(res.ReservedAt))

	q = &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err = newPgRepo(t, q).Get(ctx, "E1", "S2")
	assert.ErrorIs(t, err, ErrNotFound)
}
