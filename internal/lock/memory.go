package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryManager is an in-process Manager with the same acquire/release
// semantics as the Redis one, including TTL expiry and token-checked
// release. It serializes attempts within a single process only, which
// is enough for single-instance deployments and for tests.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[uint32]memoryEntry
	now   func() time.Time
}

// NewMemoryManager returns an empty in-process lock manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{locks: make(map[uint32]memoryEntry), now: time.Now}
}

// Acquire takes the lock iff no unexpired entry exists for the seat.
// Expired entries are treated as absent and overwritten.
func (m *MemoryManager) Acquire(_ context.Context, seatNumber uint32, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.locks[seatNumber]; ok && m.now().Before(e.expiresAt) {
		return false, nil
	}
	m.locks[seatNumber] = memoryEntry{token: token, expiresAt: m.now().Add(ttl)}
	return true, nil
}

// Release removes the lock only when the stored token matches and the
// entry has not expired. Anything else is a no-op.
func (m *MemoryManager) Release(_ context.Context, seatNumber uint32, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[seatNumber]
	if !ok || e.token != token || !m.now().Before(e.expiresAt) {
		return false, nil
	}
	delete(m.locks, seatNumber)
	return true, nil
}
