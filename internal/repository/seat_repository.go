package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ticketblitz/seat-reservation/internal/model"
)

// SeatRepo provides data access to the seats table. Reads are plain
// point lookups; the only write it exposes is the conditional status
// update used by the booking path. No other code path may set a seat
// to BOOKED.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *SeatRepo) DB() *sql.DB { return r.db }

// GetByNumber returns the seat with the given number within an event.
// It returns ErrSeatNotFound when no such seat exists.
func (r *SeatRepo) GetByNumber(ctx context.Context, eventID uint64, number uint32) (*model.Seat, error) {
	const q = `SELECT id, event_id, number, row_label, status, created_at, updated_at
	           FROM seats WHERE event_id = ? AND number = ?`
	var s model.Seat
	err := r.db.QueryRowContext(ctx, q, eventID, number).Scan(
		&s.ID, &s.EventID, &s.Number, &s.Row, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// BookIfAvailable performs the conditional status write: the seat moves
// to BOOKED only if it still reads AVAILABLE at write time. The guard is
// the WHERE clause, evaluated atomically by the database, so the update
// is safe even when two writers reach it concurrently. It reports
// whether the update applied.
func (r *SeatRepo) BookIfAvailable(ctx context.Context, seatID uint64) (bool, error) {
	const q = `UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.SeatBooked, seatID, model.SeatAvailable)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListByEvent returns all seats of an event ordered by seat number.
// Used by the seat map endpoint; status values here are a snapshot and
// may be stale the moment they are read.
func (r *SeatRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Seat, error) {
	const q = `SELECT id, event_id, number, row_label, status, created_at, updated_at
	           FROM seats WHERE event_id = ? ORDER BY number`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.EventID, &s.Number, &s.Row, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// RandomAvailable returns an arbitrary AVAILABLE seat for the event, or
// ErrSeatNotFound when the event is sold out. Used by load-test tooling.
func (r *SeatRepo) RandomAvailable(ctx context.Context, eventID uint64) (*model.Seat, error) {
	const q = `SELECT id, event_id, number, row_label, status, created_at, updated_at
	           FROM seats WHERE event_id = ? AND status = ? ORDER BY RAND() LIMIT 1`
	var s model.Seat
	err := r.db.QueryRowContext(ctx, q, eventID, model.SeatAvailable).Scan(
		&s.ID, &s.EventID, &s.Number, &s.Row, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
