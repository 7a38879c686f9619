package model

import "fmt"

// ReservationNotificationSubject is the subject line of every success notification.
const ReservationNotificationSubject = "Reservation confirmed"

// ReservationNotification is published to the notification channel after a
// reservation commits.  Subject and Message are the human readable parts
// (email subscribers see only these); the identifiers let machine
// subscribers act without parsing text.
type ReservationNotification struct {
	Subject    string `json:"subject"`
	Message    string `json:"message"`
	EventID    string `json:"eventId"`
	SeatID     string `json:"seatId"`
	UserID     string `json:"userId"`
	ReservedAt string `json:"reservedAt"`
}

// NewReservationNotification renders the notification for a committed reservation.
func NewReservationNotification(r Reservation) ReservationNotification {
	return ReservationNotification{
		Subject:    ReservationNotificationSubject,
		Message:    fmt.Sprintf("Your reservation is complete.\nEvent ID: %s, Seat ID: %s, User ID: %s", r.EventID, r.SeatID, r.UserID),
		EventID:    r.EventID,
		SeatID:     r.SeatID,
		UserID:     r.UserID,
		ReservedAt: r.ReservedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
