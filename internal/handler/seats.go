package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/ticketblitz/seat-reservation/internal/cache"
	"github.com/ticketblitz/seat-reservation/internal/repository"
)

// SeatHandler serves the seat map and helper lookups for one event.
// Statuses it returns are a snapshot: the booking path is the only
// write authority and may change any seat the moment after a read.
type SeatHandler struct {
	Seats   *repository.SeatRepo
	Cache   *cache.SeatStatusCache // optional derived view; nil disables it
	EventID uint64
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(seats *repository.SeatRepo, statusCache *cache.SeatStatusCache, eventID uint64) *SeatHandler {
	if seats == nil {
		panic("nil seat repository passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats, Cache: statusCache, EventID: eventID}
}

type seatView struct {
	Number uint32 `json:"number"`
	Row    string `json:"row"`
	Status string `json:"status"`
}

// List handles GET /v1/seats. It prefers the cached status view and
// falls back to the store when the cache is cold or unavailable,
// warming it from the authoritative listing on the way out.
func (h *SeatHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	if h.Cache != nil {
		entries, err := h.Cache.Snapshot(ctx)
		if err == nil && len(entries) > 0 {
			views := make([]seatView, 0, len(entries))
			for number, e := range entries {
				views = append(views, seatView{Number: number, Row: e.Row, Status: e.Status})
			}
			sortSeatViews(views)
			return c.JSON(http.StatusOK, echo.Map{"seats": views, "source": "cache"})
		}
		if err != nil {
			c.Logger().Warnf("seat cache snapshot: %v", err)
		}
	}

	seats, err := h.Seats.ListByEvent(ctx, h.EventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if h.Cache != nil {
		if err := h.Cache.Warm(ctx, seats); err != nil {
			c.Logger().Warnf("seat cache warm: %v", err)
		}
	}
	views := make([]seatView, 0, len(seats))
	for _, s := range seats {
		views = append(views, seatView{Number: s.Number, Row: s.Row, Status: s.Status})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": views, "source": "store"})
}

// Random handles GET /v1/seats/random, returning an arbitrary
// AVAILABLE seat. Load-test clients use it to spread attempts over the
// pool. Returns 404 when the event is sold out.
func (h *SeatHandler) Random(c echo.Context) error {
	seat, err := h.Seats.RandomAvailable(c.Request().Context(), h.EventID)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no available seats"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, seatView{Number: seat.Number, Row: seat.Row, Status: seat.Status})
}

func sortSeatViews(views []seatView) {
	sort.Slice(views, func(i, j int) bool { return views[i].Number < views[j].Number })
}
