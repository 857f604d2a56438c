// Package notifier broadcasts seat status transitions to real-time
// consumers. Publishing is fire-and-forget: subscribers connected at
// publish time see the event, everyone else catches up by reading the
// store. The booking path publishes exactly one event per successful
// booking and none for failed attempts, so observed transitions map 1:1
// to real seat state changes.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel seat transitions are published on.
const Channel = "seat-updates"

// SeatUpdate is the payload broadcast for every seat status transition.
type SeatUpdate struct {
	SeatNumber uint32 `json:"seatNumber"`
	Status     string `json:"status"`
	At         string `json:"at"`
}

// Notifier publishes seat status transitions.
type Notifier interface {
	SeatStatusChanged(ctx context.Context, seatNumber uint32, status string) error
}

// RedisNotifier broadcasts updates over a Redis pub/sub channel shared
// by all instances.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier returns a Notifier publishing on rdb.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// SeatStatusChanged publishes one SeatUpdate on the channel. Errors are
// returned so the caller can log them; a lost notification is not a
// booking failure.
func (n *RedisNotifier) SeatStatusChanged(ctx context.Context, seatNumber uint32, status string) error {
	body, err := json.Marshal(SeatUpdate{
		SeatNumber: seatNumber,
		Status:     status,
		At:         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal seat update: %w", err)
	}
	if err := n.rdb.Publish(ctx, Channel, body).Err(); err != nil {
		return fmt.Errorf("publish seat update: %w", err)
	}
	return nil
}

// Subscribe starts a Redis subscription on the seat-updates channel and
// returns a Go channel of decoded updates. The subscription ends and
// the channel closes when ctx is cancelled. Malformed payloads are
// skipped.
func Subscribe(ctx context.Context, rdb *redis.Client) <-chan SeatUpdate {
	sub := rdb.Subscribe(ctx, Channel)
	out := make(chan SeatUpdate)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var u SeatUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
