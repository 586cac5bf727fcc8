// Package handler contains the HTTP handlers. Handlers translate
// between the JSON surface and the booking core: bind and validate the
// request, call one core operation, map its error to a status code.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/middleware"
	"github.com/cinetix/movie-reservation/internal/model"
)

// requestTimeout bounds every DB-touching handler call.
const requestTimeout = 5 * time.Second

// actorFrom builds the booking.Actor from the claims JWTAuth stored in
// the context. It must only be called on routes behind JWTAuth.
func actorFrom(c echo.Context) booking.Actor {
	uid, _ := c.Get(middleware.ContextUserID).(uint64)
	role, _ := c.Get(middleware.ContextRole).(string)
	return booking.Actor{UserID: uid, Role: role}
}

// pathID parses the named path parameter as a positive integer id.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// seatPart is the wire form of a seat inside a reservation.
type seatPart struct {
	ID    uint64 `json:"id"`
	Label string `json:"label"`
}

// reservationResp is the wire form of a reservation with its seats.
type reservationResp struct {
	ID              uint64     `json:"id"`
	UserID          uint64     `json:"user_id"`
	ShowtimeID      uint64     `json:"showtime_id"`
	Status          string     `json:"status"`
	Paid            bool       `json:"paid"`
	TotalPriceCents uint32     `json:"total_price_cents"`
	Seats           []seatPart `json:"seats"`
	CreatedAt       time.Time  `json:"created_at"`
}

func renderReservation(v *booking.ReservationView) reservationResp {
	seats := make([]seatPart, 0, len(v.Seats))
	for _, s := range v.Seats {
		seats = append(seats, seatPart{ID: s.ID, Label: s.SeatLabel})
	}
	return reservationResp{
		ID:              v.ID,
		UserID:          v.UserID,
		ShowtimeID:      v.ShowtimeID,
		Status:          v.Status,
		Paid:            v.Paid,
		TotalPriceCents: v.TotalPriceCents,
		Seats:           seats,
		CreatedAt:       v.CreatedAt,
	}
}

func renderReservationModel(r *model.Reservation) reservationResp {
	return renderReservation(&booking.ReservationView{Reservation: *r})
}

// bookingError maps a booking core error onto an HTTP response. Seat
// conflicts and unknown seats carry the offending ids so the client can
// refresh exactly those seats.
func bookingError(c echo.Context, err error) error {
	var conflict *booking.SeatConflictError
	var unknown *booking.UnknownSeatsError
	switch {
	case errors.As(err, &unknown):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown seats", "seats": unknown.SeatIDs})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats unavailable", "seats": conflict.SeatIDs})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, booking.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, booking.ErrAlreadyPaid):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already paid"})
	case errors.Is(err, booking.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrExhausted):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		logrus.WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
