// Package queue implements the asynchronous booking intake: a durable
// RabbitMQ queue requests are accepted into, and the worker pool that
// drains it through the booking executor. Delivery is at-least-once
// with manual acknowledgement; the executor's conditional write makes
// replayed requests harmless.
package queue

// BookingRequestedEvent is the intake payload. Accepting it promises
// only that the request was durably recorded — the eventual outcome is
// delivered out-of-band through the change notifier, never through the
// intake response.
type BookingRequestedEvent struct {
	RequestID   string `json:"request_id"`
	RequesterID string `json:"requester_id"`
	SeatNumber  uint32 `json:"seat_number"`
	EnqueuedAt  string `json:"enqueued_at"`
}

// Accepted acknowledges intake of a booking request. It is a distinct
// type from the booking outcome on purpose: callers must not read any
// booking result into it.
type Accepted struct {
	RequestID  string `json:"request_id"`
	EnqueuedAt string `json:"enqueued_at"`
}
