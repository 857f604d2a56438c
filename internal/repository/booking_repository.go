package repository

import (
	"context"
	"database/sql"

	"github.com/ticketblitz/seat-reservation/internal/model"
)

// BookingRepo provides data access to the bookings table. Bookings are
// insert-only: nothing in this service updates or deletes them.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a booking row referencing a seat and a requester and
// returns its generated identifier. The unique index on seat_id makes a
// second insert for the same seat fail at the database, which backstops
// the conditional seat update one more time.
func (r *BookingRepo) Create(ctx context.Context, seatID uint64, requesterID string) (uint64, error) {
	const q = `INSERT INTO bookings (seat_id, requester_id) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, q, seatID, requesterID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// OrphanBookedSeats returns the numbers of seats that are BOOKED but
// have no booking row. A crash between the conditional seat update and
// the booking insert leaves a seat in this state; the reconciliation
// job scans for it periodically rather than letting it go unnoticed.
func (r *BookingRepo) OrphanBookedSeats(ctx context.Context, eventID uint64) ([]uint32, error) {
	const q = `SELECT s.number FROM seats s
	           LEFT JOIN bookings b ON b.seat_id = s.id
	           WHERE s.event_id = ? AND s.status = ? AND b.id IS NULL
	           ORDER BY s.number`
	rows, err := r.db.QueryContext(ctx, q, eventID, model.SeatBooked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var numbers []uint32
	for rows.Next() {
		var n uint32
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return numbers, nil
}
