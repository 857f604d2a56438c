package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ticketblitz/seat-reservation/internal/config"
)

// Publisher accepts booking requests onto the durable intake queue.
// The connection is opened lazily and reused; a broken channel is
// dropped and re-dialed on the next publish. Safe for concurrent use.
type Publisher struct {
	cfg config.QueueConfig

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the configured broker. No
// connection is made until the first enqueue.
func NewPublisher(cfg config.QueueConfig) *Publisher {
	return &Publisher{cfg: cfg}
}

// EnqueueBooking records a booking request for asynchronous processing
// and returns the intake acknowledgement. Persistent delivery mode plus
// the durable queue means an accepted request survives a broker restart.
func (p *Publisher) EnqueueBooking(ctx context.Context, requesterID string, seatNumber uint32) (*Accepted, error) {
	ev := BookingRequestedEvent{
		RequestID:   uuid.NewString(),
		RequesterID: requesterID,
		SeatNumber:  seatNumber,
		EnqueuedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal booking request: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return nil, err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.RequestID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",          // default exchange
		p.cfg.Queue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		pub,
	); err != nil {
		p.reset()
		log.Printf("queue: publish failed: %v", err)
		return nil, fmt.Errorf("publish booking request: %w", err)
	}
	return &Accepted{RequestID: ev.RequestID, EnqueuedAt: ev.EnqueuedAt}, nil
}

// Close tears down the broker connection if one is open.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// channel returns a live channel with the intake queue declared,
// dialing the broker if needed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := declareQueues(ch, p.cfg); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// declareQueues declares the intake queue and its dead-letter sibling.
// Both are durable; declaration is idempotent so publisher and consumer
// can each run it.
func declareQueues(ch amqpChannel, cfg config.QueueConfig) (amqp.Queue, error) {
	dlq, err := ch.QueueDeclare(cfg.DeadLetter, true, false, false, false, nil)
	if err != nil {
		return dlq, fmt.Errorf("declare dead-letter queue: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("declare queue: %w", err)
	}
	return q, nil
}
