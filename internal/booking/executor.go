// Package booking implements the booking executor, the single unit that
// is allowed to move a seat from AVAILABLE to BOOKED. Race freedom
// rests on two independent guards: exclusive possession of the per-seat
// lock during the critical section, and a conditional write that only
// applies while the seat still reads AVAILABLE. Either guard alone is
// sufficient to prevent a double booking; the lock additionally keeps
// contending attempts off the database.
package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ticketblitz/seat-reservation/internal/lock"
	"github.com/ticketblitz/seat-reservation/internal/model"
	"github.com/ticketblitz/seat-reservation/internal/notifier"
	"github.com/ticketblitz/seat-reservation/internal/repository"
)

// Store is the reservation-store contract the executor needs. The SQL
// implementation lives in the repository package; tests substitute an
// in-memory one. BookSeatIfAvailable must be atomic: the status check
// and the write happen as one operation on the store.
type Store interface {
	// GetSeatByNumber returns the seat or repository.ErrSeatNotFound.
	GetSeatByNumber(ctx context.Context, eventID uint64, number uint32) (*model.Seat, error)
	// BookSeatIfAvailable sets the seat BOOKED iff it still reads
	// AVAILABLE, reporting whether the write applied.
	BookSeatIfAvailable(ctx context.Context, seatID uint64) (bool, error)
	// CreateBooking inserts the booking row and returns its id.
	CreateBooking(ctx context.Context, seatID uint64, requesterID string) (uint64, error)
	// UpsertRequester idempotently ensures the requester row exists.
	UpsertRequester(ctx context.Context, id, contact, name string) error
}

// Executor orchestrates one booking attempt end to end. It is safe for
// concurrent use; every attempt generates its own owner token.
type Executor struct {
	store   Store
	locks   lock.Manager // nil disables the lock, leaving the conditional write as sole guard
	notify  notifier.Notifier
	eventID uint64
	lockTTL time.Duration
	callTTL time.Duration // per external call timeout
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLock layers the distributed seat lock over the conditional write.
// Without it the executor runs in CAS-only mode, which is still correct
// but lets every contending attempt reach the database.
func WithLock(m lock.Manager, ttl time.Duration) Option {
	return func(e *Executor) {
		e.locks = m
		e.lockTTL = ttl
	}
}

// WithCallTimeout bounds each external call made during an attempt.
// It must be comfortably below the lock TTL, or holders could expire
// mid-critical-section under a slow store.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Executor) { e.callTTL = d }
}

// NewExecutor builds an executor over the given store and notifier for
// one event's seat pool.
func NewExecutor(store Store, notify notifier.Notifier, eventID uint64, opts ...Option) *Executor {
	e := &Executor{
		store:   store,
		notify:  notify,
		eventID: eventID,
		callTTL: 2 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute runs one booking attempt for a requester and a seat number.
// The run is detached from the caller's cancellation: once started it
// finishes, because abandoning a half-done attempt (a lock never
// released, a seat written without its booking row) is worse than a
// wasted computation.
//
// For any seat, across all concurrent Execute calls on all instances,
// at most one call ever reaches the booking insert. The lock serializes
// the critical section and the conditional write decides the winner
// even if the lock is bypassed, misconfigured, or expired mid-hold.
func (e *Executor) Execute(ctx context.Context, requesterID string, seatNumber uint32) Outcome {
	ctx = context.WithoutCancel(ctx)

	// Fresh owner token per attempt. Requester identity is not usable
	// here: the same requester may race against themselves.
	token := uuid.NewString()

	if e.locks != nil {
		acquired, err := e.acquire(ctx, seatNumber, token)
		if err != nil {
			return Outcome{Status: StatusTransactionFailed, Err: err}
		}
		if !acquired {
			return Outcome{Status: StatusLockContended}
		}
		// Release on every exit path. A failed release means the lock
		// expired and possibly changed hands; the conditional write
		// below already covers that, so we only log it.
		defer func() {
			rctx, cancel := context.WithTimeout(ctx, e.callTTL)
			defer cancel()
			released, rerr := e.locks.Release(rctx, seatNumber, token)
			if rerr != nil {
				log.Printf("booking: release seat %d: %v", seatNumber, rerr)
			} else if !released {
				log.Printf("booking: lock for seat %d expired before release (token %s)", seatNumber, token)
			}
		}()
	}

	seat, err := e.getSeat(ctx, seatNumber)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return Outcome{Status: StatusSeatNotFound}
	}
	if err != nil {
		return Outcome{Status: StatusTransactionFailed, Err: err}
	}
	if seat.Status != model.SeatAvailable {
		return Outcome{Status: StatusSeatUnavailable}
	}

	if err := e.upsertRequester(ctx, requesterID); err != nil {
		return Outcome{Status: StatusTransactionFailed, Err: err}
	}

	applied, err := e.bookSeat(ctx, seat.ID)
	if err != nil {
		return Outcome{Status: StatusTransactionFailed, Err: err}
	}
	if !applied {
		// Another writer won between our read and the write. With a
		// healthy lock this cannot happen; with an expired or disabled
		// lock it is the expected loser path.
		return Outcome{Status: StatusSeatUnavailable}
	}

	bookingID, err := e.createBooking(ctx, seat.ID, requesterID)
	if err != nil {
		// The seat is BOOKED but its booking row is missing: the
		// documented inconsistency window. The reconciliation scan
		// picks it up; nothing here may undo the seat write.
		log.Printf("booking: seat %d booked but insert failed, pending reconciliation: %v", seatNumber, err)
		return Outcome{Status: StatusTransactionFailed, Err: err}
	}

	nctx, cancel := context.WithTimeout(ctx, e.callTTL)
	defer cancel()
	if err := e.notify.SeatStatusChanged(nctx, seatNumber, model.SeatBooked); err != nil {
		log.Printf("booking: notify seat %d: %v", seatNumber, err)
	}

	return Outcome{Status: StatusBooked, BookingID: bookingID}
}

func (e *Executor) acquire(ctx context.Context, seatNumber uint32, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTTL)
	defer cancel()
	return e.locks.Acquire(ctx, seatNumber, token, e.lockTTL)
}

func (e *Executor) getSeat(ctx context.Context, seatNumber uint32) (*model.Seat, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTTL)
	defer cancel()
	return e.store.GetSeatByNumber(ctx, e.eventID, seatNumber)
}

func (e *Executor) upsertRequester(ctx context.Context, requesterID string) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTTL)
	defer cancel()
	// The demo data set uses the external identity as the contact token.
	return e.store.UpsertRequester(ctx, requesterID, requesterID, "Test User")
}

func (e *Executor) bookSeat(ctx context.Context, seatID uint64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTTL)
	defer cancel()
	return e.store.BookSeatIfAvailable(ctx, seatID)
}

func (e *Executor) createBooking(ctx context.Context, seatID uint64, requesterID string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTTL)
	defer cancel()
	return e.store.CreateBooking(ctx, seatID, requesterID)
}
