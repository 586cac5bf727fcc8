package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/model"
)

// Allocator atomically claims a set of seats for a new reservation, or
// fails cleanly. Under concurrent calls targeting overlapping seat sets
// for the same showtime at most one call succeeds per seat; the others
// observe a SeatConflictError. No seat is ever double-booked and the
// available-seat counter never goes negative.
type Allocator struct {
	store Store
}

// NewAllocator constructs an Allocator bound to the given store.
func NewAllocator(store Store) *Allocator {
	if store == nil {
		panic("nil store passed to NewAllocator")
	}
	return &Allocator{store: store}
}

// Reserve claims the requested seats for userID in one atomic unit of
// work and returns the materialized reservation with its seats.
//
// Failure modes: ErrInvalidArgument (empty or duplicated seat list),
// ErrNotFound (showtime absent, or UnknownSeatsError naming seat ids
// that do not exist for the showtime), ErrInvalidState (showtime
// already started), ErrExhausted (capacity fast path), and
// SeatConflictError naming seats already taken.
func (a *Allocator) Reserve(ctx context.Context, showtimeID, userID uint64, seatIDs []uint64) (*ReservationView, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("%w: seat_ids is required", ErrInvalidArgument)
	}
	// Reject duplicates outright rather than silently deduplicating;
	// a request asking for the same seat twice is malformed.
	sorted := make([]uint64, len(seatIDs))
	copy(sorted, seatIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("%w: duplicate seat id %d", ErrInvalidArgument, sorted[i])
		}
	}

	var view *ReservationView
	err := a.store.Atomic(ctx, func(tx Tx) error {
		st, err := tx.ShowtimeForUpdate(ctx, showtimeID)
		if err != nil {
			return err
		}
		if st.Started(time.Now().UTC()) {
			return fmt.Errorf("%w: showtime already started", ErrInvalidState)
		}
		// Fast-path rejection before touching any seat row.
		if st.AvailableSeats < uint32(len(sorted)) {
			return fmt.Errorf("%w: requested %d, available %d",
				ErrExhausted, len(sorted), st.AvailableSeats)
		}
		// Lock exactly the requested rows in ascending id order, then
		// re-validate under lock.
		seats, err := tx.LockSeats(ctx, showtimeID, sorted)
		if err != nil {
			return err
		}
		if len(seats) != len(sorted) {
			locked := make(map[uint64]struct{}, len(seats))
			for _, s := range seats {
				locked[s.ID] = struct{}{}
			}
			missing := make([]uint64, 0, len(sorted)-len(seats))
			for _, id := range sorted {
				if _, ok := locked[id]; !ok {
					missing = append(missing, id)
				}
			}
			return &UnknownSeatsError{SeatIDs: missing}
		}
		var taken []uint64
		for _, s := range seats {
			if s.Reserved {
				taken = append(taken, s.ID)
			}
		}
		if len(taken) > 0 {
			return &SeatConflictError{SeatIDs: taken}
		}

		res := &model.Reservation{
			UserID:          userID,
			ShowtimeID:      showtimeID,
			Status:          model.ReservationConfirmed,
			Paid:            false,
			TotalPriceCents: st.PriceCents * uint32(len(sorted)),
		}
		if err := tx.CreateReservation(ctx, res); err != nil {
			return err
		}
		if err := tx.AssignSeats(ctx, showtimeID, sorted, res.ID); err != nil {
			return err
		}
		if err := tx.AdjustAvailableSeats(ctx, showtimeID, -int32(len(sorted))); err != nil {
			return err
		}
		for i := range seats {
			seats[i].Reserved = true
			rid := res.ID
			seats[i].ReservationID = &rid
		}
		view = &ReservationView{Reservation: *res, Seats: seats}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": view.ID,
		"showtime_id":    showtimeID,
		"user_id":        userID,
		"seats":          sorted,
	}).Info("reservation created")
	return view, nil
}
