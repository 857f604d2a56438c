package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ticketblitz/seat-reservation/internal/booking"
	"github.com/ticketblitz/seat-reservation/internal/queue"
)

// BookingExecutor is the synchronous booking entry point. It is
// implemented by *booking.Executor and declared here so handler tests
// can substitute their own.
type BookingExecutor interface {
	Execute(ctx context.Context, requesterID string, seatNumber uint32) booking.Outcome
}

// BookingIntake is the asynchronous entry point, implemented by
// *queue.Publisher.
type BookingIntake interface {
	EnqueueBooking(ctx context.Context, requesterID string, seatNumber uint32) (*queue.Accepted, error)
}

// bookingRequest is the wire shape of a booking attempt.
type bookingRequest struct {
	RequesterID string `json:"requesterId"`
	SeatNumber  uint32 `json:"seatNumber"`
}

// BookingHandler exposes the synchronous and asynchronous booking
// endpoints. Intake may be nil when the broker is not configured, in
// which case async requests are rejected with 503.
type BookingHandler struct {
	Exec   BookingExecutor
	Intake BookingIntake
}

// NewBookingHandler constructs a BookingHandler. Exec must be non-nil.
func NewBookingHandler(exec BookingExecutor, intake BookingIntake) *BookingHandler {
	if exec == nil {
		panic("nil executor passed to NewBookingHandler")
	}
	return &BookingHandler{Exec: exec, Intake: intake}
}

// Book handles POST /v1/bookings. The caller waits for the attempt's
// final outcome; the response status encodes it directly.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := validateBookingRequest(req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	out := h.Exec.Execute(c.Request().Context(), req.RequesterID, req.SeatNumber)
	switch out.Status {
	case booking.StatusBooked:
		return c.JSON(http.StatusOK, echo.Map{
			"status":    out.Status.String(),
			"bookingId": out.BookingID,
		})
	case booking.StatusSeatNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"status": out.Status.String(), "error": "seat not found"})
	case booking.StatusSeatUnavailable:
		return c.JSON(http.StatusConflict, echo.Map{"status": out.Status.String(), "error": "seat already taken"})
	case booking.StatusLockContended:
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"status": out.Status.String(),
			"error":  "seat is currently being booked by someone else, please try again",
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": out.Status.String(), "error": "failed to process booking"})
	}
}

// BookAsync handles POST /v1/bookings/async. It records the request on
// the intake queue and returns 202 immediately. The acknowledgement
// carries no booking result: the outcome arrives out-of-band via the
// seat-updates channel once a worker has processed the request.
func (h *BookingHandler) BookAsync(c echo.Context) error {
	if h.Intake == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "async intake not configured"})
	}
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := validateBookingRequest(req); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	acc, err := h.Intake.EnqueueBooking(c.Request().Context(), req.RequesterID, req.SeatNumber)
	if err != nil {
		c.Logger().Errorf("enqueue booking: %v", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "failed to accept booking request"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"accepted":   true,
		"requestId":  acc.RequestID,
		"enqueuedAt": acc.EnqueuedAt,
	})
}

// validateBookingRequest returns an error message for a rejected body,
// or "" when the request is well-formed.
func validateBookingRequest(req bookingRequest) string {
	if req.RequesterID == "" {
		return "requesterId is required"
	}
	if req.SeatNumber == 0 {
		return "seatNumber must be a positive integer"
	}
	return ""
}
