package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/service"
	"github.com/iliyamo/event-seat-reservation/internal/utils"
)

// recordingQueue settles every request straight into the store, standing in
// for queue plus worker.
type recordingQueue struct {
	settle *service.SettlementService
	n      int
}

func (q *recordingQueue) Enqueue(ctx context.Context, req model.IntakeRequest) error {
	q.n++
	body := `{"eventId":"` + req.EventID + `","seatId":"` + req.SeatID + `","userId":"` + req.UserID + `"}`
	q.settle.Settle(ctx, model.QueueMessage{ID: "m", GroupKey: req.GroupKey(), Body: []byte(body)})
	return nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyReserved(context.Context, model.Reservation) error { return nil }

func newApp(t *testing.T, secret string) (*echo.Echo, *repository.MemoryReservationRepo, *recordingQueue) {
	t.Helper()
	store := repository.NewMemoryReservationRepo()
	q := &recordingQueue{settle: service.NewSettlementService(store, noopNotifier{}, nil)}
	h := handler.NewReservationHandler(service.NewIntakeService(q, nil), service.NewReservationService(store, nil))
	e := echo.New()
	RegisterRoutes(e)
	RegisterReservations(e, h, NewMiddleware(secret, nil, nil))
	return e, store, q
}

func call(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _, _ := newApp(t, "")
	rec := call(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReserveCancelReReserve(t *testing.T) {
	e, store, q := newApp(t, "")

	rec := call(e, http.MethodPost, "/reserve", `{"eventId":"E1","seatId":"S1","userId":"U1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(e, http.MethodGet, "/reservations/E1/S1", "", "")
	assert.Contains(t, rec.Body.String(), `"reserved":true`)
	assert.NotContains(t, rec.Body.String(), "U1")

	// U2 loses and may not cancel U1's seat.
	call(e, http.MethodPost, "/reserve", `{"eventId":"E1","seatId":"S1","userId":"U2"}`, "")
	rec = call(e, http.MethodPost, "/cancel?eventId=E1&seatId=S1&userId=U2", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	got, err := store.Get(context.Background(), "E1", "S1")
	require.NoError(t, err)
	assert.Equal(t, "U1", got.UserID)

	rec = call(e, http.MethodDelete, "/reservations?eventId=E1&seatId=S1&userId=U1", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	call(e, http.MethodPost, "/reserve", `{"eventId":"E1","seatId":"S1","userId":"U2"}`, "")
	got, err = store.Get(context.Background(), "E1", "S1")
	require.NoError(t, err)
	assert.Equal(t, "U2", got.UserID)
	assert.Equal(t, 3, q.n)
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	e, _, q := newApp(t, "s3cret")
	body := `{"eventId":"E1","seatId":"S1","userId":"U1"}`

	rec := call(e, http.MethodPost, "/reserve", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u2, err := utils.NewAccessToken("s3cret", "U2", time.Minute)
	require.NoError(t, err)
	rec = call(e, http.MethodPost, "/reserve", body, u2.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	u1, err := utils.NewAccessToken("s3cret", "U1", time.Minute)
	require.NoError(t, err)
	rec = call(e, http.MethodPost, "/reserve", body, u1.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, q.n)

	// seat status stays public
	rec = call(e, http.MethodGet, "/reservations/E1/S1", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
