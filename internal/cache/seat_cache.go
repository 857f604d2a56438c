// Package cache maintains a derived, eventually consistent view of the
// seat map in a Redis hash for cheap seat-map reads. It is never a
// write authority: the only writers are the warm-up fill from the store
// and the change-notifier subscription, so a stale entry can lag a real
// transition but can never cause one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketblitz/seat-reservation/internal/model"
	"github.com/ticketblitz/seat-reservation/internal/notifier"
)

// Entry is the cached view of one seat. Row comes from the warm-up fill
// and is static; Status tracks the change notifier.
type Entry struct {
	Row    string `json:"row"`
	Status string `json:"status"`
}

// SeatStatusCache mirrors seat number → Entry for one event.
type SeatStatusCache struct {
	rdb     *redis.Client
	eventID uint64
	ttl     time.Duration
}

// New returns a cache over rdb for the given event. Entries expire
// after ttl so a wedged updater cannot serve ancient state forever.
func New(rdb *redis.Client, eventID uint64, ttl time.Duration) *SeatStatusCache {
	return &SeatStatusCache{rdb: rdb, eventID: eventID, ttl: ttl}
}

func (c *SeatStatusCache) key() string {
	return fmt.Sprintf("seats:status:%d", c.eventID)
}

func encodeEntry(e Entry) string {
	b, _ := json.Marshal(e)
	return string(b)
}

func decodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// applyStatus folds a status transition into an encoded entry, keeping
// the row intact. A missing or unreadable entry yields a row-less one,
// which the next warm-up repairs.
func applyStatus(existing, status string) string {
	e, err := decodeEntry(existing)
	if err != nil {
		e = Entry{}
	}
	e.Status = status
	return encodeEntry(e)
}

// Snapshot returns the cached seat number → Entry map. An empty map
// means the cache is cold and the caller should fall back to the store.
func (c *SeatStatusCache) Snapshot(ctx context.Context) (map[uint32]Entry, error) {
	fields, err := c.rdb.HGetAll(ctx, c.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("cache snapshot: %w", err)
	}
	out := make(map[uint32]Entry, len(fields))
	for f, raw := range fields {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			continue
		}
		e, err := decodeEntry(raw)
		if err != nil {
			continue
		}
		out[uint32(n)] = e
	}
	return out, nil
}

// Warm fills the cache from an authoritative seat listing.
func (c *SeatStatusCache) Warm(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, len(seats)*2)
	for _, s := range seats {
		fields = append(fields,
			strconv.FormatUint(uint64(s.Number), 10),
			encodeEntry(Entry{Row: s.Row, Status: s.Status}))
	}
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, c.key(), fields...)
	pipe.Expire(ctx, c.key(), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache warm: %w", err)
	}
	return nil
}

// Apply folds one seat transition into the cached view. The read-modify
// -write on the field is unguarded, which is fine: the row never
// changes and the status writer is a single Run loop.
func (c *SeatStatusCache) Apply(ctx context.Context, u notifier.SeatUpdate) error {
	field := strconv.FormatUint(uint64(u.SeatNumber), 10)
	existing, err := c.rdb.HGet(ctx, c.key(), field).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("cache apply read: %w", err)
	}
	if err := c.rdb.HSet(ctx, c.key(), field, applyStatus(existing, u.Status)).Err(); err != nil {
		return fmt.Errorf("cache apply: %w", err)
	}
	return nil
}

// Run consumes seat updates until the channel closes or ctx is
// cancelled, folding each into the cache. Apply errors are logged and
// skipped; the TTL bounds how long a missed update can linger.
func (c *SeatStatusCache) Run(ctx context.Context, updates <-chan notifier.SeatUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := c.Apply(ctx, u); err != nil {
				log.Printf("seat-cache: apply seat %d: %v", u.SeatNumber, err)
			}
		}
	}
}
