// Package booking implements the seat inventory allocation core: the
// seat allocator, the reservation lifecycle manager and the payment
// reconciler. It owns the reservation state machine and every invariant
// tying seats, showtimes and payments together. Persistence is reached
// through the Store interface so the package carries no driver
// dependency of its own.
package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors distinguishing the failure scenarios callers need to
// tell apart. Handlers translate these into HTTP statuses; nothing in
// this package is retried automatically.
var (
	// ErrNotFound is returned when a showtime, seat, reservation or
	// payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned for operations against elapsed
	// showtimes or for state transitions the reservation state machine
	// does not allow (e.g. cancelling a cancelled reservation).
	ErrInvalidState = errors.New("invalid state")

	// ErrExhausted is returned by the fast-path capacity check when a
	// showtime has fewer available seats than requested, before any
	// seat row is touched.
	ErrExhausted = errors.New("not enough available seats")

	// ErrSeatsUnavailable is returned when requested seats exist but
	// are already claimed by another live reservation. It is always
	// wrapped in a SeatConflictError naming the conflicting seats so
	// the client can re-offer alternatives.
	ErrSeatsUnavailable = errors.New("seats unavailable")

	// ErrUnauthorized is returned when the acting user neither owns
	// the resource nor holds an elevated role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyPaid is returned by Checkout when a SUCCEEDED payment
	// already exists for the reservation.
	ErrAlreadyPaid = errors.New("reservation already paid")

	// ErrInvalidSignature is returned when a webhook event fails
	// authenticity verification. No state is read or written.
	ErrInvalidSignature = errors.New("invalid event signature")

	// ErrInvalidArgument is returned for malformed requests such as an
	// empty or duplicated seat id list.
	ErrInvalidArgument = errors.New("invalid argument")
)

// SeatConflictError reports the exact seats that were already reserved
// when a Reserve call re-validated under lock. Unwraps to
// ErrSeatsUnavailable.
type SeatConflictError struct {
	SeatIDs []uint64
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.SeatIDs)
}

func (e *SeatConflictError) Unwrap() error { return ErrSeatsUnavailable }

// UnknownSeatsError reports requested seat ids that do not exist or do
// not belong to the targeted showtime. Unwraps to ErrNotFound so
// clients can distinguish "seat doesn't exist" from "seat is taken".
type UnknownSeatsError struct {
	SeatIDs []uint64
}

func (e *UnknownSeatsError) Error() string {
	return fmt.Sprintf("unknown seats for showtime: %v", e.SeatIDs)
}

func (e *UnknownSeatsError) Unwrap() error { return ErrNotFound }
