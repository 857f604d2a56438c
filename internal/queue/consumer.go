package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ticketblitz/seat-reservation/internal/booking"
	"github.com/ticketblitz/seat-reservation/internal/config"
)

// attemptsHeader counts deliveries of a request across republishes. It
// starts absent (first attempt) and is incremented on every retry.
const attemptsHeader = "x-attempts"

// disposition is what the worker does with a delivery after the
// executor has returned.
type disposition int

const (
	// dispositionAck commits the delivery: the outcome is final.
	dispositionAck disposition = iota
	// dispositionRetry republishes the request with an incremented
	// attempt count, then acks the original.
	dispositionRetry
	// dispositionDeadLetter moves the request to the dead-letter queue
	// for manual inspection, then acks the original.
	dispositionDeadLetter
)

// decide maps an executor outcome and the delivery's attempt count to a
// disposition. Only transient failures are retried, and only within the
// configured budget; every committed answer (booked, not found,
// unavailable, contended) acks immediately. Lock contention is not
// retried here: the request already lost the seat race and replaying it
// would just hammer a seat that is being booked.
func decide(out booking.Outcome, attempts, maxAttempts int) disposition {
	if !out.Retryable() {
		return dispositionAck
	}
	if attempts+1 >= maxAttempts {
		return dispositionDeadLetter
	}
	return dispositionRetry
}

// Consumer is the worker pool draining the intake queue. Each worker
// loop is: dequeue, run the booking executor, and only then acknowledge
// the delivery — success or terminal failure. Acknowledging earlier
// would lose requests on a worker crash.
type Consumer struct {
	cfg  config.QueueConfig
	exec *booking.Executor
}

// NewConsumer builds a Consumer running deliveries through exec.
func NewConsumer(cfg config.QueueConfig, exec *booking.Executor) *Consumer {
	return &Consumer{cfg: cfg, exec: exec}
}

// Run connects to the broker and consumes until ctx is cancelled. It
// reconnects with exponential backoff on broker failures; deliveries
// in flight when a connection drops are redelivered by the broker
// because they were never acknowledged.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			log.Printf("worker: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := c.consumeLoop(ctx, conn); err != nil {
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("worker: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

// amqpChannel is the subset of *amqp.Channel the consumer uses, pulled
// out so the shutdown path is testable without a broker.
type amqpChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	return c.consume(ctx, ch)
}

// consume runs the worker pool over one channel until ctx is cancelled
// or the broker drops the delivery stream. It always closes ch.
func (c *Consumer) consume(ctx context.Context, ch amqpChannel) error {
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		log.Printf("worker: set QoS failed: %v", err)
	}
	if _, err := declareQueues(ch, c.cfg); err != nil {
		return err
	}

	// Name the consumer ourselves: cancelling on shutdown requires the
	// tag, and the broker library generates an opaque one when the tag
	// is left empty.
	tag := uuid.NewString()
	msgs, err := ch.Consume(c.cfg.Queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	// The pool: N workers share one delivery channel. Pool size caps
	// processing concurrency; per-seat ordering is irrelevant because
	// the executor's lock and conditional write decide the winner
	// regardless of queue position.
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range msgs {
				c.handle(ctx, ch, d)
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-ctx.Done():
		// Cancelling the tag closes msgs, which lets the workers drain
		// and exit. If even that fails, close the channel outright so
		// shutdown can never block on a stream that stays open.
		if err := ch.Cancel(tag, false); err != nil {
			log.Printf("worker: cancel consumer: %v", err)
			_ = ch.Close()
		}
		<-done
		return ctx.Err()
	case <-done:
		// Broker dropped the delivery stream; Run reconnects.
		return errDeliveriesClosed
	}
}

// handle processes one delivery end to end and always settles it.
func (c *Consumer) handle(ctx context.Context, ch amqpChannel, d amqp.Delivery) {
	var ev BookingRequestedEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		// Malformed payloads can never succeed: straight to the DLQ.
		log.Printf("worker: unmarshal request failed: %v", err)
		if err := c.deadLetter(ctx, ch, d); err != nil {
			log.Printf("worker: dead-letter malformed request: %v", err)
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
		return
	}

	out := c.exec.Execute(ctx, ev.RequesterID, ev.SeatNumber)
	attempts := deliveryAttempts(d)

	switch decide(out, attempts, c.cfg.MaxAttempts) {
	case dispositionAck:
		log.Printf("worker: request %s seat %d -> %s (attempt %d)", ev.RequestID, ev.SeatNumber, out.Status, attempts+1)
		_ = d.Ack(false)

	case dispositionRetry:
		log.Printf("worker: request %s seat %d failed (attempt %d/%d), requeueing: %v",
			ev.RequestID, ev.SeatNumber, attempts+1, c.cfg.MaxAttempts, out.Err)
		time.Sleep(c.cfg.RetryDelay)
		if err := c.republish(ctx, ch, d, attempts+1); err != nil {
			// Could not requeue; leave the original unacked so the
			// broker redelivers it.
			log.Printf("worker: republish request %s: %v", ev.RequestID, err)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)

	case dispositionDeadLetter:
		log.Printf("worker: request %s seat %d exhausted %d attempts, dead-lettering: %v",
			ev.RequestID, ev.SeatNumber, c.cfg.MaxAttempts, out.Err)
		if err := c.deadLetter(ctx, ch, d); err != nil {
			log.Printf("worker: dead-letter request %s: %v", ev.RequestID, err)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	}
}

// republish puts the request back on the intake queue with an
// incremented attempt counter.
func (c *Consumer) republish(ctx context.Context, ch amqpChannel, d amqp.Delivery, attempts int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[attemptsHeader] = int32(attempts)
	return ch.PublishWithContext(ctx, "", c.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         d.Body,
	})
}

// deadLetter copies the delivery onto the dead-letter queue unchanged.
func (c *Consumer) deadLetter(ctx context.Context, ch amqpChannel, d amqp.Delivery) error {
	return ch.PublishWithContext(ctx, "", c.cfg.DeadLetter, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Timestamp:    time.Now().UTC(),
		Headers:      d.Headers,
		Body:         d.Body,
	})
}

// deliveryAttempts reads the attempt counter from the delivery headers;
// a first delivery has none.
func deliveryAttempts(d amqp.Delivery) int {
	v, ok := d.Headers[attemptsHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

var errDeliveriesClosed = errors.New("deliveries channel closed")
