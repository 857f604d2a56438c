package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/ticketblitz/seat-reservation/internal/config"
	"github.com/ticketblitz/seat-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/ticketblitz/seat-reservation/internal/middleware" // import middleware for rate limiting
)

// RegisterRoutes registers routes that carry no rate limiting on the
// provided Echo instance. Currently it exposes only a health check,
// used by load balancers and monitoring systems to verify that the
// service is up and running.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the booking endpoints. Both live under the
// token-bucket limiter: the synchronous path because it holds a lock
// and touches the store per request, the asynchronous path because an
// unbounded intake just moves the flood into the queue.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/bookings")
	g.Use(middleware.NewTokenBucket(rl, rdb))
	// Synchronous booking: the response carries the final outcome.
	g.POST("", b.Book)
	// Asynchronous intake: 202 now, outcome later via seat-updates.
	g.POST("/async", b.BookAsync)
}

// RegisterSeats registers the read-only seat endpoints. These serve
// snapshots (cache first, store as fallback) and are left unlimited so
// that seat-map polling never competes with bookings for tokens.
func RegisterSeats(e *echo.Echo, s *handler.SeatHandler) {
	// Full seat map with statuses.
	e.GET("/v1/seats", s.List)
	// An arbitrary AVAILABLE seat, for load-test clients.
	e.GET("/v1/seats/random", s.Random)
}
