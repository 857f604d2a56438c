package model

import "time"

// Seat status values as stored in the seats.status column. BOOKED is
// terminal: no code path transitions a seat out of it. There is no
// persisted LOCKED value — a seat counts as locked while some booking
// attempt holds the distributed lock for its number, which is visible
// only to that attempt.
const (
	SeatAvailable = "AVAILABLE"
	SeatBooked    = "BOOKED"
)

// Seat describes a single numbered seat belonging to an event. Seat
// numbers are unique within an event and are the key clients book by.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event to which this seat belongs.
//  Number    – seat number, unique per event, always > 0.
//  Row       – row label for display purposes.
//  Status    – availability status (AVAILABLE, BOOKED).
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Seat struct {
	ID        uint64    // seats.id
	EventID   uint64    // seats.event_id
	Number    uint32    // seats.number
	Row       string    // seats.row_label
	Status    string    // seats.status
	CreatedAt time.Time // seats.created_at
	UpdatedAt time.Time // seats.updated_at
}
