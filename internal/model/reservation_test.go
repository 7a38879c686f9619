package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntakeRequestKeys(t *testing.T) {
	r := IntakeRequest{EventID: "E1", SeatID: "S1", UserID: "U1"}
	assert.Equal(t, "S1", r.GroupKey())
	assert.Equal(t, "S1-U1", r.DedupKey())
}

func TestIntakeRequestComplete(t *testing.T) {
	tests := []struct {
		name string
		req  IntakeRequest
		want bool
	}{
		{"all present", IntakeRequest{"E1", "S1", "U1"}, true},
		{"missing event", IntakeRequest{"", "S1", "U1"}, false},
		{"missing seat", IntakeRequest{"E1", "", "U1"}, false},
		{"blank user", IntakeRequest{"E1", "S1", "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Complete())
		})
	}
}

func TestIntakeRequestReservationUsesUTC(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, loc)
	res := IntakeRequest{EventID: "E1", SeatID: "S1", UserID: "U1"}.Reservation(at)
	assert.Equal(t, time.UTC, res.ReservedAt.Location())
	assert.True(t, res.ReservedAt.Equal(at))
}

func TestNewReservationNotification(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	n := NewReservationNotification(Reservation{EventID: "E1", SeatID: "S1", UserID: "U1", ReservedAt: at})
	assert.Equal(t, ReservationNotificationSubject, n.Subject)
	for _, part := range []string{"Event ID: E1", "Seat ID: S1", "User ID: U1"} {
		assert.True(t, strings.Contains(n.Message, part), part)
	}
	assert.Equal(t, "2025-03-01T00:00:00.000Z", n.ReservedAt)
}
