package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketblitz/seat-reservation/internal/booking"
	"github.com/ticketblitz/seat-reservation/internal/queue"
)

type stubExecutor struct {
	out booking.Outcome
	got []string
}

func (s *stubExecutor) Execute(_ context.Context, requesterID string, _ uint32) booking.Outcome {
	s.got = append(s.got, requesterID)
	return s.out
}

type stubIntake struct {
	acc *queue.Accepted
	err error
}

func (s *stubIntake) EnqueueBooking(context.Context, string, uint32) (*queue.Accepted, error) {
	return s.acc, s.err
}

func postJSON(t *testing.T, h echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestBookOutcomeStatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		outcome booking.Outcome
		code    int
	}{
		{"booked", booking.Outcome{Status: booking.StatusBooked, BookingID: 7}, http.StatusOK},
		{"not found", booking.Outcome{Status: booking.StatusSeatNotFound}, http.StatusNotFound},
		{"unavailable", booking.Outcome{Status: booking.StatusSeatUnavailable}, http.StatusConflict},
		{"contended", booking.Outcome{Status: booking.StatusLockContended}, http.StatusTooManyRequests},
		{"failed", booking.Outcome{Status: booking.StatusTransactionFailed, Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBookingHandler(&stubExecutor{out: tc.outcome}, nil)
			rec := postJSON(t, h.Book, "/v1/bookings", `{"requesterId":"alice","seatNumber":1}`)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.outcome.Status.String())
		})
	}
}

func TestBookValidation(t *testing.T) {
	exec := &stubExecutor{out: booking.Outcome{Status: booking.StatusBooked}}
	h := NewBookingHandler(exec, nil)

	rec := postJSON(t, h.Book, "/v1/bookings", `{"seatNumber":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Book, "/v1/bookings", `{"requesterId":"alice","seatNumber":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h.Book, "/v1/bookings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, exec.got, "invalid requests must never reach the executor")
}

func TestBookAsyncAccepted(t *testing.T) {
	intake := &stubIntake{acc: &queue.Accepted{RequestID: "req-1", EnqueuedAt: "2026-01-01T00:00:00Z"}}
	h := NewBookingHandler(&stubExecutor{}, intake)

	rec := postJSON(t, h.BookAsync, "/v1/bookings/async", `{"requesterId":"alice","seatNumber":1}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "req-1")
	// The acknowledgement must not claim any booking outcome.
	assert.NotContains(t, rec.Body.String(), "Booked")
}

func TestBookAsyncWithoutIntake(t *testing.T) {
	h := NewBookingHandler(&stubExecutor{}, nil)
	rec := postJSON(t, h.BookAsync, "/v1/bookings/async", `{"requesterId":"alice","seatNumber":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBookAsyncBrokerDown(t *testing.T) {
	h := NewBookingHandler(&stubExecutor{}, &stubIntake{err: errors.New("broker unreachable")})
	rec := postJSON(t, h.BookAsync, "/v1/bookings/async", `{"requesterId":"alice","seatNumber":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
