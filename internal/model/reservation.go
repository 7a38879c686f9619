package model

import (
	"strings"
	"time"
)

// Reservation is a committed booking of one seat for one event.  The pair
// (EventID, SeatID) is the primary key; at most one Reservation exists for
// a seat at any time.
//
// Fields:
//  EventID    – event identifier (partition key).
//  SeatID     – seat identifier within the event (sort key).
//  UserID     – user who owns the reservation; only this user may cancel.
//  ReservedAt – commit timestamp, set by the settlement worker in UTC.
type Reservation struct {
	EventID    string    `json:"eventId"`
	SeatID     string    `json:"seatId"`
	UserID     string    `json:"userId"`
	ReservedAt time.Time `json:"reservedAt"`
}

// IntakeRequest is a pending reservation attempt travelling through the
// intake queue.  It carries no timestamp; ReservedAt is assigned on commit.
type IntakeRequest struct {
	EventID string `json:"eventId"`
	SeatID  string `json:"seatId"`
	UserID  string `json:"userId"`
}

// GroupKey is the ordering key: every request for the same seat is
// delivered in submission order.
func (r IntakeRequest) GroupKey() string { return r.SeatID }

// DedupKey collapses a user's repeated request for the same seat into one
// delivery within the queue's dedup window.
func (r IntakeRequest) DedupKey() string { return r.SeatID + "-" + r.UserID }

// Complete reports whether all three identifiers are present.  Blank
// (whitespace only) values count as missing.
func (r IntakeRequest) Complete() bool {
	return strings.TrimSpace(r.EventID) != "" &&
		strings.TrimSpace(r.SeatID) != "" &&
		strings.TrimSpace(r.UserID) != ""
}

// Reservation builds the record committed for this request.
func (r IntakeRequest) Reservation(at time.Time) Reservation {
	return Reservation{
		EventID:    r.EventID,
		SeatID:     r.SeatID,
		UserID:     r.UserID,
		ReservedAt: at.UTC(),
	}
}

// CancelRequest identifies the reservation a user asks to cancel.
type CancelRequest struct {
	EventID string
	SeatID  string
	UserID  string
}

// Complete reports whether all three identifiers are present.
func (r CancelRequest) Complete() bool {
	return strings.TrimSpace(r.EventID) != "" &&
		strings.TrimSpace(r.SeatID) != "" &&
		strings.TrimSpace(r.UserID) != ""
}

// SeatStatus is the public view of a seat.  It never exposes the owner.
type SeatStatus struct {
	EventID    string  `json:"eventId"`
	SeatID     string  `json:"seatId"`
	Reserved   bool    `json:"reserved"`
	ReservedAt *string `json:"reservedAt,omitempty"`
}
