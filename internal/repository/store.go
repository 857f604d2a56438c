package repository

import (
	"context"
	"database/sql"

	"github.com/ticketblitz/seat-reservation/internal/model"
)

// Store bundles the seat, booking and requester repositories into the
// reservation-store adapter the booking executor consumes. No two of
// its operations need to share a transaction: the conditional seat
// update is checked before the booking insert runs, and a crash between
// the two is handled by the reconciliation scan.
type Store struct {
	Seats      *SeatRepo
	Bookings   *BookingRepo
	Requesters *RequesterRepo
}

// NewStore wires the three repositories over one database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Seats:      NewSeatRepo(db),
		Bookings:   NewBookingRepo(db),
		Requesters: NewRequesterRepo(db),
	}
}

// GetSeatByNumber looks up a seat by number within an event.
func (s *Store) GetSeatByNumber(ctx context.Context, eventID uint64, number uint32) (*model.Seat, error) {
	return s.Seats.GetByNumber(ctx, eventID, number)
}

// BookSeatIfAvailable performs the conditional AVAILABLE→BOOKED write.
func (s *Store) BookSeatIfAvailable(ctx context.Context, seatID uint64) (bool, error) {
	return s.Seats.BookIfAvailable(ctx, seatID)
}

// CreateBooking inserts the booking row for a won seat.
func (s *Store) CreateBooking(ctx context.Context, seatID uint64, requesterID string) (uint64, error) {
	return s.Bookings.Create(ctx, seatID, requesterID)
}

// UpsertRequester lazily creates the requester record.
func (s *Store) UpsertRequester(ctx context.Context, id, contact, name string) error {
	return s.Requesters.Upsert(ctx, id, contact, name)
}
