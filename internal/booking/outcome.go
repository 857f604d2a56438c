package booking

import "fmt"

// Status classifies the result of one booking attempt.
type Status int

const (
	// StatusBooked means the attempt won the seat; BookingID is set.
	StatusBooked Status = iota
	// StatusSeatNotFound means the seat number does not exist. Terminal.
	StatusSeatNotFound
	// StatusSeatUnavailable means the seat exists but is no longer
	// AVAILABLE, including losing the conditional write. Terminal and
	// expected under contention.
	StatusSeatUnavailable
	// StatusLockContended means another attempt holds the seat lock
	// right now. Transient; callers may retry with backoff.
	StatusLockContended
	// StatusTransactionFailed means a store or transport call failed or
	// timed out. Transient; the worker pool retries via redelivery.
	StatusTransactionFailed
)

// String returns the wire-friendly name of the status.
func (s Status) String() string {
	switch s {
	case StatusBooked:
		return "Booked"
	case StatusSeatNotFound:
		return "SeatNotFound"
	case StatusSeatUnavailable:
		return "SeatUnavailable"
	case StatusLockContended:
		return "LockContended"
	case StatusTransactionFailed:
		return "TransactionFailed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of one Executor.Execute run.
type Outcome struct {
	Status    Status
	BookingID uint64 // set only when Status == StatusBooked
	Err       error  // underlying cause for StatusTransactionFailed
}

// Retryable reports whether redelivering the same request could change
// the result. Only transient store/transport failures qualify; every
// other status is a committed answer.
func (o Outcome) Retryable() bool {
	return o.Status == StatusTransactionFailed
}
