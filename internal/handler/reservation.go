package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cinetix/movie-reservation/internal/booking"
)

// ReservationHandler serves seat reservation, cancellation and the
// reservation read endpoints, customer and admin alike.
type ReservationHandler struct {
	Allocator *booking.Allocator
	Lifecycle *booking.Lifecycle
}

func NewReservationHandler(a *booking.Allocator, l *booking.Lifecycle) *ReservationHandler {
	return &ReservationHandler{Allocator: a, Lifecycle: l}
}

type reserveReq struct {
	SeatIDs []uint64 `json:"seat_ids"`
}

// Create claims the requested seats of the showtime in the path for the
// authenticated user. On a seat conflict the response lists the
// contested seat ids.
func (h *ReservationHandler) Create(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	actor := actorFrom(c)
	view, err := h.Allocator.Reserve(ctx, showtimeID, actor.UserID, req.SeatIDs)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, renderReservation(view))
}

// Get returns one reservation with its seats.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	view, err := h.Lifecycle.Get(ctx, id, actorFrom(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, renderReservation(view))
}

// Cancel releases the reservation's seats and restores the showtime's
// availability.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Lifecycle.Cancel(ctx, id, actorFrom(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, renderReservationModel(res))
}

// ListMine returns the authenticated user's reservations, newest first.
// Optional query filters: paid=true|false and status=CONFIRMED|CANCELLED.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	var f booking.ReservationFilter
	if v := c.QueryParam("paid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "paid must be true or false"})
		}
		f.Paid = &paid
	}
	f.Status = c.QueryParam("status")

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	views, err := h.Lifecycle.ListForUser(ctx, actorFrom(c), f)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]reservationResp, 0, len(views))
	for i := range views {
		out = append(out, renderReservation(&views[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// AdminList returns a page of all CONFIRMED reservations.
func (h *ReservationHandler) AdminList(c echo.Context) error {
	page := booking.Page{Number: 1, PerPage: 20}
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page.Number = n
		}
	}
	if v := c.QueryParam("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			page.PerPage = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	views, total, err := h.Lifecycle.ListConfirmed(ctx, actorFrom(c), page)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]reservationResp, 0, len(views))
	for i := range views {
		out = append(out, renderReservation(&views[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservations": out,
		"total":        total,
		"page":         page.Number,
		"per_page":     page.PerPage,
	})
}

// AdminRevenue sums confirmed-reservation revenue for showtimes starting
// in the inclusive [from, to] range (RFC 3339 query params).
func (h *ReservationHandler) AdminRevenue(c echo.Context) error {
	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC 3339"})
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC 3339"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sum, err := h.Lifecycle.Revenue(ctx, actorFrom(c), from, to)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":          from.UTC(),
		"to":            to.UTC(),
		"revenue_cents": sum,
	})
}
