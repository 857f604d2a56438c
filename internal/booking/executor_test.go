package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketblitz/seat-reservation/internal/lock"
	"github.com/ticketblitz/seat-reservation/internal/model"
	"github.com/ticketblitz/seat-reservation/internal/repository"
)

const testEventID = 1

// memStore is an in-memory reservation store with the same atomicity
// contract as the SQL one: BookSeatIfAvailable checks and writes the
// status under one mutex hold. An optional delay between the seat read
// and anything that follows widens the race window the way the original
// load tests did.
type memStore struct {
	mu         sync.Mutex
	seats      map[uint32]*model.Seat
	bookings   map[uint64][]model.Booking
	requesters map[string]struct{}
	nextID     uint64

	readDelay  time.Duration
	failInsert error // when set, CreateBooking fails with this error
}

func newMemStore(seatNumbers ...uint32) *memStore {
	s := &memStore{
		seats:      make(map[uint32]*model.Seat),
		bookings:   make(map[uint64][]model.Booking),
		requesters: make(map[string]struct{}),
	}
	for i, n := range seatNumbers {
		s.seats[n] = &model.Seat{ID: uint64(i + 1), EventID: testEventID, Number: n, Status: model.SeatAvailable}
	}
	return s
}

func (s *memStore) GetSeatByNumber(_ context.Context, eventID uint64, number uint32) (*model.Seat, error) {
	s.mu.Lock()
	seat, ok := s.seats[number]
	var cp model.Seat
	if ok && seat.EventID == eventID {
		cp = *seat
	}
	s.mu.Unlock()
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	time.Sleep(s.readDelay)
	return &cp, nil
}

func (s *memStore) BookSeatIfAvailable(_ context.Context, seatID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range s.seats {
		if seat.ID == seatID {
			if seat.Status != model.SeatAvailable {
				return false, nil
			}
			seat.Status = model.SeatBooked
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateBooking(_ context.Context, seatID uint64, requesterID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return 0, s.failInsert
	}
	s.nextID++
	s.bookings[seatID] = append(s.bookings[seatID], model.Booking{ID: s.nextID, SeatID: seatID, RequesterID: requesterID})
	return s.nextID, nil
}

func (s *memStore) UpsertRequester(_ context.Context, id, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesters[id] = struct{}{}
	return nil
}

func (s *memStore) bookingCount(seatID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings[seatID])
}

func (s *memStore) seatStatus(number uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seats[number].Status
}

// countingNotifier records every published transition.
type countingNotifier struct {
	published atomic.Int64
}

func (n *countingNotifier) SeatStatusChanged(context.Context, uint32, string) error {
	n.published.Add(1)
	return nil
}

// brokenLock simulates a lock manager that grants every acquire, as if
// misconfigured or expired mid-hold. With it in place the conditional
// write is the only guard left.
type brokenLock struct{}

func (brokenLock) Acquire(context.Context, uint32, string, time.Duration) (bool, error) {
	return true, nil
}
func (brokenLock) Release(context.Context, uint32, string) (bool, error) { return true, nil }

func runConcurrent(t *testing.T, e *Executor, seat uint32, n int) map[Status]int {
	t.Helper()
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			requester := "requester-" + string(rune('A'+i%26)) + string(rune('0'+i%10))
			outcomes[i] = e.Execute(context.Background(), requester, seat)
		}(i)
	}
	wg.Wait()

	counts := make(map[Status]int)
	for _, o := range outcomes {
		counts[o.Status]++
		if o.Status == StatusBooked {
			assert.NotZero(t, o.BookingID)
		}
	}
	return counts
}

func TestExecuteSingleWinnerUnderContention(t *testing.T) {
	store := newMemStore(1)
	store.readDelay = 2 * time.Millisecond
	notify := &countingNotifier{}
	e := NewExecutor(store, notify, testEventID, WithLock(lock.NewMemoryManager(), 5*time.Second))

	counts := runConcurrent(t, e, 1, 50)

	require.Equal(t, 1, counts[StatusBooked], "exactly one attempt may win the seat")
	require.Equal(t, 49, counts[StatusSeatUnavailable]+counts[StatusLockContended])
	assert.Zero(t, counts[StatusTransactionFailed])
	assert.Equal(t, model.SeatBooked, store.seatStatus(1))
	assert.Equal(t, 1, store.bookingCount(1), "exactly one booking row")
	assert.Equal(t, int64(1), notify.published.Load(), "one notification per real transition")
}

func TestExecuteConditionalWriteIsLoadBearing(t *testing.T) {
	// Every attempt "acquires" the broken lock, so all of them enter
	// the critical section concurrently. The conditional write alone
	// must still admit a single winner.
	store := newMemStore(1)
	store.readDelay = 2 * time.Millisecond
	e := NewExecutor(store, &countingNotifier{}, testEventID, WithLock(brokenLock{}, 5*time.Second))

	counts := runConcurrent(t, e, 1, 50)

	require.Equal(t, 1, counts[StatusBooked])
	require.Equal(t, 49, counts[StatusSeatUnavailable])
	assert.Equal(t, 1, store.bookingCount(1))
}

func TestExecuteWithoutLockManager(t *testing.T) {
	// CAS-only mode: the lock layer is configured off entirely.
	store := newMemStore(1)
	store.readDelay = 2 * time.Millisecond
	e := NewExecutor(store, &countingNotifier{}, testEventID)

	counts := runConcurrent(t, e, 1, 50)

	require.Equal(t, 1, counts[StatusBooked])
	require.Equal(t, 49, counts[StatusSeatUnavailable])
	assert.Zero(t, counts[StatusLockContended])
	assert.Equal(t, 1, store.bookingCount(1))
}

func TestExecuteSeatNotFound(t *testing.T) {
	store := newMemStore(1)
	locks := lock.NewMemoryManager()
	e := NewExecutor(store, &countingNotifier{}, testEventID, WithLock(locks, 5*time.Second))

	out := e.Execute(context.Background(), "alice", 999)
	require.Equal(t, StatusSeatNotFound, out.Status)
	assert.False(t, out.Retryable())

	// No lock left behind for the missing seat.
	ok, err := locks.Acquire(context.Background(), 999, "other-token", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "lock for seat 999 must have been released")

	assert.Equal(t, model.SeatAvailable, store.seatStatus(1))
	assert.Equal(t, 0, store.bookingCount(1))
}

func TestExecuteReplayAfterSuccess(t *testing.T) {
	store := newMemStore(1)
	notify := &countingNotifier{}
	e := NewExecutor(store, notify, testEventID, WithLock(lock.NewMemoryManager(), 5*time.Second))

	first := e.Execute(context.Background(), "alice", 1)
	require.Equal(t, StatusBooked, first.Status)

	// At-least-once delivery replays the same request after a worker
	// crash. The replay must land on the loser path, never create a
	// second booking row.
	replay := e.Execute(context.Background(), "alice", 1)
	require.Equal(t, StatusSeatUnavailable, replay.Status)
	assert.False(t, replay.Retryable())

	assert.Equal(t, 1, store.bookingCount(1))
	assert.Equal(t, int64(1), notify.published.Load())
}

func TestExecuteLockContentionFailsFast(t *testing.T) {
	store := newMemStore(1)
	locks := lock.NewMemoryManager()
	e := NewExecutor(store, &countingNotifier{}, testEventID, WithLock(locks, 5*time.Second))

	// Simulate a foreign holder: the lock is taken, the seat untouched.
	ok, err := locks.Acquire(context.Background(), 1, "foreign-holder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	out := e.Execute(context.Background(), "alice", 1)
	require.Equal(t, StatusLockContended, out.Status)
	assert.Less(t, time.Since(start), time.Second, "contention must not block or retry")

	// The foreign lock survived the losing attempt.
	released, err := locks.Release(context.Background(), 1, "foreign-holder")
	require.NoError(t, err)
	assert.True(t, released)
}

func TestExecuteBookingInsertFailure(t *testing.T) {
	store := newMemStore(1)
	store.failInsert = errors.New("store unavailable")
	notify := &countingNotifier{}
	e := NewExecutor(store, notify, testEventID, WithLock(lock.NewMemoryManager(), 5*time.Second))

	out := e.Execute(context.Background(), "alice", 1)
	require.Equal(t, StatusTransactionFailed, out.Status)
	assert.True(t, out.Retryable())
	require.ErrorContains(t, out.Err, "store unavailable")

	// The inconsistency window: seat written, booking row missing. The
	// seat write is never undone here; reconciliation owns the cleanup.
	assert.Equal(t, model.SeatBooked, store.seatStatus(1))
	assert.Equal(t, 0, store.bookingCount(1))
	assert.Zero(t, notify.published.Load(), "no notification for a failed attempt")
}

func TestExecuteIgnoresCallerCancellation(t *testing.T) {
	store := newMemStore(1)
	e := NewExecutor(store, &countingNotifier{}, testEventID, WithLock(lock.NewMemoryManager(), 5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // caller already gone

	out := e.Execute(ctx, "alice", 1)
	require.Equal(t, StatusBooked, out.Status, "an abandoned run still completes")
	assert.Equal(t, 1, store.bookingCount(1))
}
