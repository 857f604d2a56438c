package model

import "time"

// Booking records that a seat was granted to a requester. Bookings are
// create-once: they are never updated and never deleted by normal
// operation, and at most one booking may ever exist per seat. Only a
// successful Booking Executor run inserts one.
//
// Fields:
//  ID          – primary key identifier.
//  SeatID      – the seat that was booked.
//  RequesterID – identity of the requester the seat was granted to.
//  CreatedAt   – creation timestamp.
type Booking struct {
	ID          uint64    // bookings.id
	SeatID      uint64    // bookings.seat_id
	RequesterID string    // bookings.requester_id
	CreatedAt   time.Time // bookings.created_at
}
