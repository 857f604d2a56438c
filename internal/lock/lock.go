// Package lock implements the per-seat mutual-exclusion lock used to
// serialize concurrent booking attempts on the same seat across API and
// worker instances. A lock is an opaque owner token stored under the
// seat's key with a short TTL; ownership is proven by token equality,
// never by caller identity. Both primitives are atomic: acquire is a
// single set-if-absent-with-expiry and release is a single
// compare-and-delete, so the lock itself cannot race.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Manager acquires and releases per-seat locks.
//
// Acquire returns true iff no unexpired lock exists for the seat,
// atomically creating one owned by token. A false return means another
// attempt currently holds the seat; callers must fail fast rather than
// retry-loop.
//
// Release deletes the lock only if the stored value still equals token,
// and reports whether it did. A false return with a nil error means the
// lock had already expired (and possibly been re-acquired by someone
// else) — an anticipated race, logged by callers but never escalated.
type Manager interface {
	Acquire(ctx context.Context, seatNumber uint32, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, seatNumber uint32, token string) (bool, error)
}

// releaseScript deletes the key only when it still holds the caller's
// token. Running it server-side makes the check-and-delete atomic; a
// plain GET followed by DEL would leave a window in which the lock
// expires and is re-acquired, and the DEL would then destroy the new
// owner's lock.
var releaseScript = redis.NewScript(`
    if redis.call("get", KEYS[1]) == ARGV[1] then
        return redis.call("del", KEYS[1])
    else
        return 0
    end
`)

// RedisManager is the production Manager backed by a shared Redis
// instance, which provides the cross-instance linearizability the lock
// protocol needs.
type RedisManager struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisManager returns a Manager storing lock records in rdb under
// "<prefix>:<seatNumber>" keys.
func NewRedisManager(rdb *redis.Client, prefix string) *RedisManager {
	return &RedisManager{rdb: rdb, prefix: prefix}
}

func (m *RedisManager) key(seatNumber uint32) string {
	return fmt.Sprintf("%s:%d", m.prefix, seatNumber)
}

// Acquire issues SET key token NX EX ttl. SetNX maps exactly to the
// set-if-absent-with-expiry primitive; false means the seat is held.
func (m *RedisManager) Acquire(ctx context.Context, seatNumber uint32, token string, ttl time.Duration) (bool, error) {
	ok, err := m.rdb.SetNX(ctx, m.key(seatNumber), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	return ok, nil
}

// Release runs the compare-and-delete script with the caller's token.
func (m *RedisManager) Release(ctx context.Context, seatNumber uint32, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, m.rdb, []string{m.key(seatNumber)}, token).Int()
	if err != nil {
		return false, fmt.Errorf("lock release: %w", err)
	}
	return n == 1, nil
}
