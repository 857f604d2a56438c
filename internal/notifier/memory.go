package notifier

import (
	"context"
	"sync"
	"time"
)

// MemoryNotifier is an in-process Notifier that fans updates out to
// registered subscriber channels. Subscribers that are not draining
// their channel miss updates instead of blocking the publisher, which
// mirrors the fire-and-forget contract of the Redis implementation.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs []chan SeatUpdate
}

// NewMemoryNotifier returns a notifier with no subscribers.
func NewMemoryNotifier() *MemoryNotifier { return &MemoryNotifier{} }

// SeatStatusChanged delivers the update to every subscriber that has
// buffer room, dropping it for the rest.
func (n *MemoryNotifier) SeatStatusChanged(_ context.Context, seatNumber uint32, status string) error {
	u := SeatUpdate{
		SeatNumber: seatNumber,
		Status:     status,
		At:         time.Now().UTC().Format(time.RFC3339),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- u:
		default:
		}
	}
	return nil
}

// Subscribe registers a buffered subscriber channel and returns it.
func (n *MemoryNotifier) Subscribe() <-chan SeatUpdate {
	ch := make(chan SeatUpdate, 64)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}
