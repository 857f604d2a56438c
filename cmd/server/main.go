package main // Entry point package

import (
	"context"
	"log" // Logging library
	"time"

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/ticketblitz/seat-reservation/internal/booking"
	"github.com/ticketblitz/seat-reservation/internal/cache"
	"github.com/ticketblitz/seat-reservation/internal/config" // Internal config loader
	"github.com/ticketblitz/seat-reservation/internal/database"
	"github.com/ticketblitz/seat-reservation/internal/handler"
	"github.com/ticketblitz/seat-reservation/internal/lock"
	"github.com/ticketblitz/seat-reservation/internal/notifier"
	"github.com/ticketblitz/seat-reservation/internal/queue"
	"github.com/ticketblitz/seat-reservation/internal/repository"
	"github.com/ticketblitz/seat-reservation/internal/router" // Internal router setup
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment

	cfg := config.Load()
	lockCfg := config.LoadLockConfig()
	queueCfg := config.LoadQueueConfig()
	rateCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	store := repository.NewStore(db)

	// Redis backs the seat lock, the notifier and the derived seat
	// cache. Without it the server still runs: bookings fall back to
	// the conditional write alone and reads go straight to the store.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: lock, seat cache and rate limiting disabled")
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

	// The async intake is optional; with the queue disabled the
	// endpoint answers 503 and the synchronous path keeps working.
	var intake handler.BookingIntake
	if queueCfg.Enabled {
		pub := queue.NewPublisher(queueCfg)
		defer pub.Close()
		intake = pub
	}

	// Keep the derived seat-status view current from the seat-updates
	// channel for as long as the process lives.
	var seatCache *cache.SeatStatusCache
	if rdb != nil {
		seatCache = cache.New(rdb, cfg.EventID, 10*time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go seatCache.Run(ctx, notifier.Subscribe(ctx, rdb))
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterBooking(e, handler.NewBookingHandler(exec, intake), rateCfg, rdb)
	router.RegisterSeats(e, handler.NewSeatHandler(store.Seats, seatCache, cfg.EventID))

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
