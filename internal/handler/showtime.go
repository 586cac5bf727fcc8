package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

// ShowtimeHandler serves the public showtime/seat-map endpoints and the
// admin showtime creation endpoint.
type ShowtimeHandler struct {
	Store booking.Store
}

func NewShowtimeHandler(store booking.Store) *ShowtimeHandler {
	return &ShowtimeHandler{Store: store}
}

type createShowtimeReq struct {
	MovieID    uint64   `json:"movie_id"`
	TheaterID  uint64   `json:"theater_id"`
	StartsAt   string   `json:"starts_at"` // RFC 3339
	PriceCents uint32   `json:"price_cents"`
	SeatLabels []string `json:"seat_labels"`
}

type showtimeResp struct {
	ID             uint64    `json:"id"`
	MovieID        uint64    `json:"movie_id"`
	TheaterID      uint64    `json:"theater_id"`
	StartsAt       time.Time `json:"starts_at"`
	PriceCents     uint32    `json:"price_cents"`
	TotalSeats     uint32    `json:"total_seats"`
	AvailableSeats uint32    `json:"available_seats"`
}

func renderShowtime(st *model.Showtime) showtimeResp {
	return showtimeResp{
		ID:             st.ID,
		MovieID:        st.MovieID,
		TheaterID:      st.TheaterID,
		StartsAt:       st.StartsAt,
		PriceCents:     st.PriceCents,
		TotalSeats:     st.TotalSeats,
		AvailableSeats: st.AvailableSeats,
	}
}

// Create provisions a showtime with its full seat map. Seat labels
// define the inventory once and for all; capacity and price are
// immutable afterwards.
func (h *ShowtimeHandler) Create(c echo.Context) error {
	var req createShowtimeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.MovieID == 0 || req.TheaterID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "movie_id/theater_id required"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
	}
	if len(req.SeatLabels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels required"})
	}
	seen := make(map[string]bool, len(req.SeatLabels))
	for _, l := range req.SeatLabels {
		if l == "" || seen[l] {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels must be unique and non-empty"})
		}
		seen[l] = true
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	st := &model.Showtime{
		MovieID:    req.MovieID,
		TheaterID:  req.TheaterID,
		StartsAt:   startsAt.UTC(),
		PriceCents: req.PriceCents,
	}
	if err := h.Store.CreateShowtime(ctx, st, req.SeatLabels); err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, renderShowtime(st))
}

// Get returns one showtime, available-seat counter included.
func (h *ShowtimeHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	st, err := h.Store.GetShowtime(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, renderShowtime(st))
}

type seatMapEntry struct {
	ID       uint64 `json:"id"`
	Label    string `json:"label"`
	Reserved bool   `json:"reserved"`
}

// Seats returns the seat map of a showtime. The reserved flags are a
// snapshot; only Reserve's own locking decides who actually gets a seat.
func (h *ShowtimeHandler) Seats(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.Store.GetShowtime(ctx, id); err != nil {
		return bookingError(c, err)
	}
	seats, err := h.Store.SeatsByShowtime(ctx, id)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]seatMapEntry, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatMapEntry{ID: s.ID, Label: s.SeatLabel, Reserved: s.Reserved})
	}
	return c.JSON(http.StatusOK, echo.Map{"showtime_id": id, "seats": out})
}
