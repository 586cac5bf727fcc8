package model

import "time"

// Showtime represents a scheduled screening of a movie at a theater.
// It carries a fixed seat inventory (TotalSeats, set at creation) and a
// mutable AvailableSeats counter that is only ever changed inside the
// same transaction that claims or releases seat rows.
//
// Invariant: 0 <= AvailableSeats <= TotalSeats, and AvailableSeats equals
// TotalSeats minus the number of seats linked to a non-cancelled
// reservation for this showtime.
//
// Fields:
//  ID             – primary key identifier.
//  MovieID        – external reference into the movie catalog.
//  TheaterID      – external reference into the theater catalog.
//  StartsAt       – when the screening begins.
//  PriceCents     – price per seat in cents, immutable after creation.
//  TotalSeats     – size of the seat inventory, immutable after creation.
//  AvailableSeats – seats not currently claimed by a live reservation.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Showtime struct {
	ID             uint64    // showtimes.id
	MovieID        uint64    // showtimes.movie_id
	TheaterID      uint64    // showtimes.theater_id
	StartsAt       time.Time // showtimes.starts_at
	PriceCents     uint32    // showtimes.price_cents
	TotalSeats     uint32    // showtimes.total_seats
	AvailableSeats uint32    // showtimes.available_seats
	CreatedAt      time.Time // showtimes.created_at
	UpdatedAt      time.Time // showtimes.updated_at
}

// Started reports whether the showtime has already begun at the given
// instant. Reservations and cancellations are both rejected once a
// showtime has started.
func (s *Showtime) Started(now time.Time) bool {
	return !s.StartsAt.After(now)
}
