package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketblitz/seat-reservation/internal/booking"
	"github.com/ticketblitz/seat-reservation/internal/config"
	"github.com/ticketblitz/seat-reservation/internal/model"
	"github.com/ticketblitz/seat-reservation/internal/notifier"
	"github.com/ticketblitz/seat-reservation/internal/repository"
)

func TestDecideCommittedOutcomesAck(t *testing.T) {
	for _, st := range []booking.Status{
		booking.StatusBooked,
		booking.StatusSeatNotFound,
		booking.StatusSeatUnavailable,
		booking.StatusLockContended,
	} {
		got := decide(booking.Outcome{Status: st}, 0, 3)
		assert.Equal(t, dispositionAck, got, "status %s must ack immediately", st)
	}
}

func TestDecideTransientFailureRetriesWithinBudget(t *testing.T) {
	out := booking.Outcome{Status: booking.StatusTransactionFailed, Err: errors.New("timeout")}

	assert.Equal(t, dispositionRetry, decide(out, 0, 3), "first attempt retries")
	assert.Equal(t, dispositionRetry, decide(out, 1, 3), "second attempt retries")
	assert.Equal(t, dispositionDeadLetter, decide(out, 2, 3), "third attempt is the last")
}

func TestDecideSingleAttemptBudget(t *testing.T) {
	out := booking.Outcome{Status: booking.StatusTransactionFailed}
	assert.Equal(t, dispositionDeadLetter, decide(out, 0, 1))
}

func TestDeliveryAttempts(t *testing.T) {
	assert.Equal(t, 0, deliveryAttempts(amqp.Delivery{}), "first delivery has no header")
	assert.Equal(t, 2, deliveryAttempts(amqp.Delivery{Headers: amqp.Table{attemptsHeader: int32(2)}}))
	assert.Equal(t, 3, deliveryAttempts(amqp.Delivery{Headers: amqp.Table{attemptsHeader: int64(3)}}))
	assert.Equal(t, 0, deliveryAttempts(amqp.Delivery{Headers: amqp.Table{attemptsHeader: "junk"}}))
}

// idleStore satisfies booking.Store for consumers that never receive a
// delivery during the test.
type idleStore struct{}

func (idleStore) GetSeatByNumber(context.Context, uint64, uint32) (*model.Seat, error) {
	return nil, repository.ErrSeatNotFound
}
func (idleStore) BookSeatIfAvailable(context.Context, uint64) (bool, error) { return false, nil }
func (idleStore) CreateBooking(context.Context, uint64, string) (uint64, error) {
	return 0, nil
}
func (idleStore) UpsertRequester(context.Context, string, string, string) error { return nil }

// fakeChannel is an in-memory amqpChannel: Consume hands out a delivery
// stream and Cancel closes it, mirroring broker behaviour.
type fakeChannel struct {
	mu         sync.Mutex
	msgs       chan amqp.Delivery
	consumeTag string
	cancelTag  string
	closed     bool
}

func (f *fakeChannel) Qos(int, int, bool) error { return nil }

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Consume(_, consumer string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consumeTag = consumer
	f.msgs = make(chan amqp.Delivery)
	return f.msgs, nil
}

func (f *fakeChannel) Cancel(consumer string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTag = consumer
	close(f.msgs)
	return nil
}

func (f *fakeChannel) PublishWithContext(context.Context, string, string, bool, bool, amqp.Publishing) error {
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) tags() (consume, cancel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.consumeTag, f.cancelTag
}

func TestConsumeStopsOnContextCancel(t *testing.T) {
	exec := booking.NewExecutor(idleStore{}, notifier.NewMemoryNotifier(), 1)
	c := NewConsumer(config.QueueConfig{
		Queue:       "booking.requests",
		DeadLetter:  "booking.requests.dlq",
		Workers:     2,
		MaxAttempts: 3,
		Prefetch:    10,
	}, exec)

	ch := &fakeChannel{}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- c.consume(ctx, ch) }()

	// Let the consumer register before pulling the plug.
	require.Eventually(t, func() bool {
		consume, _ := ch.tags()
		return consume != ""
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return after context cancellation")
	}

	consume, cancelled := ch.tags()
	assert.NotEmpty(t, consume, "consumer must register under a named tag")
	assert.Equal(t, consume, cancelled, "shutdown must cancel the tag it consumed with")
}
