package model

import "time"

// Reservation status values. A reservation is created CONFIRMED (seats
// claimed, payment outstanding) and only ever transitions to CANCELLED.
// Payment settlement is tracked separately by the Paid flag so that the
// financial leg and the inventory leg stay independent.
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
)

// Reservation records a user's claim over a specific set of seats for
// a showtime. TotalPriceCents is fixed at creation (showtime price ×
// seat count) and never recomputed.
//
// Invariant: a CONFIRMED reservation's seats are all Reserved and point
// back to it; a CANCELLED reservation's seats have been released.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who made the reservation.
//  ShowtimeID      – showtime being reserved.
//  Status          – CONFIRMED or CANCELLED.
//  Paid            – whether the payment has settled.
//  TotalPriceCents – total price in cents for all seats.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64    // reservations.id
	UserID          uint64    // reservations.user_id
	ShowtimeID      uint64    // reservations.showtime_id
	Status          string    // reservations.status
	Paid            bool      // reservations.paid
	TotalPriceCents uint32    // reservations.total_price_cents
	CreatedAt       time.Time // reservations.created_at
	UpdatedAt       time.Time // reservations.updated_at
}
