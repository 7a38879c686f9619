// Package repository defines error types that are reused across every
// reservation store implementation. These sentinel values allow higher
// layers to distinguish between the outcomes of a conditional write
// without knowing which backend produced them.
package repository

import "errors"

// ErrForbidden is returned by DeleteIfOwner when no reservation matches
// both the seat key and the caller's user id. It deliberately covers
// "absent" and "owned by someone else" alike. Handlers translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned by InsertIfAbsent when the seat already holds
// a reservation. Settlement translates this into a 409 result.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned by Get when the seat has no reservation.
var ErrNotFound = errors.New("reservation not found")
