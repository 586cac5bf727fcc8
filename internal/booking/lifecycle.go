package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/model"
)

// Lifecycle owns the reservation state machine after creation:
// cancellation with compensating seat release, plus the read-side
// queries (listing, fetching, admin reporting). Every state mutation
// runs inside one atomic unit of work; the read queries carry no
// concurrency contract beyond standard read consistency.
type Lifecycle struct {
	store Store
}

// NewLifecycle constructs a Lifecycle bound to the given store.
func NewLifecycle(store Store) *Lifecycle {
	if store == nil {
		panic("nil store passed to NewLifecycle")
	}
	return &Lifecycle{store: store}
}

// Cancel transitions a CONFIRMED reservation to CANCELLED, releases
// every seat it held and restores the showtime's available-seat counter
// by the released count, all atomically.
//
// Authorization: the owner of the reservation or an admin. Cancelling
// an already-cancelled reservation or a reservation whose showtime has
// started fails with ErrInvalidState and changes nothing. Cancelling a
// paid reservation frees inventory but does not touch the payment;
// refunds are an explicit separate operation this core does not offer.
func (l *Lifecycle) Cancel(ctx context.Context, reservationID uint64, actor Actor) (*model.Reservation, error) {
	var out *model.Reservation
	err := l.store.Atomic(ctx, func(tx Tx) error {
		res, err := tx.ReservationForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != actor.UserID && !actor.Admin() {
			return ErrUnauthorized
		}
		if res.Status != model.ReservationConfirmed {
			return fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
		}
		st, err := tx.ShowtimeForUpdate(ctx, res.ShowtimeID)
		if err != nil {
			return err
		}
		if st.Started(time.Now().UTC()) {
			return fmt.Errorf("%w: showtime already started", ErrInvalidState)
		}
		released, err := tx.ReleaseSeats(ctx, reservationID)
		if err != nil {
			return err
		}
		if len(released) > 0 {
			if err := tx.AdjustAvailableSeats(ctx, res.ShowtimeID, int32(len(released))); err != nil {
				return err
			}
		}
		if err := tx.SetReservationStatus(ctx, reservationID, model.ReservationCancelled); err != nil {
			return err
		}
		res.Status = model.ReservationCancelled
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"user_id":        actor.UserID,
	}).Info("reservation cancelled")
	return out, nil
}

// Get returns a reservation with its seats. Customers may only fetch
// their own reservations; admins may fetch any.
func (l *Lifecycle) Get(ctx context.Context, reservationID uint64, actor Actor) (*ReservationView, error) {
	view, err := l.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if view.UserID != actor.UserID && !actor.Admin() {
		return nil, ErrUnauthorized
	}
	return view, nil
}

// ListForUser returns the actor's reservations, optionally filtered by
// paid flag and status. An empty result is a valid answer, not an error.
func (l *Lifecycle) ListForUser(ctx context.Context, actor Actor, f ReservationFilter) ([]ReservationView, error) {
	return l.store.ListReservationsByUser(ctx, actor.UserID, f)
}

// ListConfirmed returns a page of all CONFIRMED reservations together
// with the total count. Admin only.
func (l *Lifecycle) ListConfirmed(ctx context.Context, actor Actor, p Page) ([]ReservationView, int64, error) {
	if !actor.Admin() {
		return nil, 0, ErrUnauthorized
	}
	if p.PerPage <= 0 {
		p.PerPage = 20
	}
	return l.store.ListConfirmedReservations(ctx, p)
}

// Revenue sums TotalPriceCents across CONFIRMED reservations whose
// showtime starts within [from, to]. Admin only.
func (l *Lifecycle) Revenue(ctx context.Context, actor Actor, from, to time.Time) (uint64, error) {
	if !actor.Admin() {
		return 0, ErrUnauthorized
	}
	if to.Before(from) {
		return 0, fmt.Errorf("%w: range end before start", ErrInvalidArgument)
	}
	return l.store.RevenueCents(ctx, from, to)
}
