// Package reconcile implements the periodic scan for the documented
// inconsistency window of the booking path: a crash between the
// conditional seat write and the booking insert leaves a seat BOOKED
// with no booking row. The scanner surfaces such seats instead of
// letting them go unnoticed; resolving them (refund, re-open, manual
// fix) is an operator decision, not something this service guesses at.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/ticketblitz/seat-reservation/internal/repository"
)

// Scanner periodically checks one event's seat pool for orphaned
// BOOKED seats.
type Scanner struct {
	bookings *repository.BookingRepo
	eventID  uint64
	interval time.Duration
}

// NewScanner builds a Scanner over the booking repository.
func NewScanner(bookings *repository.BookingRepo, eventID uint64, interval time.Duration) *Scanner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scanner{bookings: bookings, eventID: eventID, interval: interval}
}

// Run scans immediately and then on every tick until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	orphans, err := s.bookings.OrphanBookedSeats(ctx, s.eventID)
	if err != nil {
		log.Printf("reconcile: scan failed: %v", err)
		return
	}
	if len(orphans) == 0 {
		return
	}
	log.Printf("reconcile: %d BOOKED seat(s) without a booking row, manual attention required: %v", len(orphans), orphans)
}
