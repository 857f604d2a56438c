// The worker binary drains the booking intake queue through the booking
// executor and runs the reconciliation scan. It shares no memory with
// the API servers; the seat lock and the conditional write coordinate
// them through Redis and the database.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ticketblitz/seat-reservation/internal/booking"
	"github.com/ticketblitz/seat-reservation/internal/config"
	"github.com/ticketblitz/seat-reservation/internal/database"
	"github.com/ticketblitz/seat-reservation/internal/lock"
	"github.com/ticketblitz/seat-reservation/internal/notifier"
	"github.com/ticketblitz/seat-reservation/internal/queue"
	"github.com/ticketblitz/seat-reservation/internal/reconcile"
	"github.com/ticketblitz/seat-reservation/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	lockCfg := config.LoadLockConfig()
	queueCfg := config.LoadQueueConfig()
	if !queueCfg.Enabled {
		log.Fatalf("booking queue disabled (BOOKING_QUEUE_ENABLED=false); worker has nothing to consume")
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	store := repository.NewStore(db)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: booking lock and change notifications disabled")
	}

	var notify notifier.Notifier
	if rdb != nil {
		notify = notifier.NewRedisNotifier(rdb)
	} else {
		notify = notifier.NewMemoryNotifier()
	}

	opts := []booking.Option{booking.WithCallTimeout(2 * time.Second)}
	if rdb != nil && lockCfg.Enabled {
		opts = append(opts, booking.WithLock(lock.NewRedisManager(rdb, lockCfg.Prefix), lockCfg.TTL))
	}
	exec := booking.NewExecutor(store, notify, cfg.EventID, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reconcile.NewScanner(store.Bookings, cfg.EventID, time.Minute).Run(ctx)

	log.Printf("worker pool starting: queue=%s workers=%d maxAttempts=%d",
		queueCfg.Queue, queueCfg.Workers, queueCfg.MaxAttempts)
	if err := queue.NewConsumer(queueCfg, exec).Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("consumer stopped: %v", err)
	}
	log.Printf("worker shut down")
}
