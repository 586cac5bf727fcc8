package booking

import (
	"context"
	"time"

	"github.com/cinetix/movie-reservation/internal/model"
)

// Actor identifies the authenticated principal performing an operation.
// The core never authenticates credentials itself; user id and role are
// supplied by the identity layer (JWT middleware).
type Actor struct {
	UserID uint64
	Role   string
}

// Admin reports whether the actor holds elevated privileges.
func (a Actor) Admin() bool { return a.Role == model.RoleAdmin }

// ReservationFilter narrows reservation listings. A nil Paid means no
// paid-status filter; an empty Status means any status.
type ReservationFilter struct {
	Paid   *bool
	Status string
}

// Page describes offset pagination for admin listings.
type Page struct {
	Number  int // 1-based page number
	PerPage int
}

// Offset returns the row offset for the page, clamping out-of-range input.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.PerPage
}

// ReservationView is a reservation together with the seats booked under
// it, as returned by the read-side queries.
type ReservationView struct {
	model.Reservation
	Seats []model.Seat
}

// SeatIDs returns the ids of the seats in the view, in storage order.
func (v *ReservationView) SeatIDs() []uint64 {
	ids := make([]uint64, 0, len(v.Seats))
	for _, s := range v.Seats {
		ids = append(ids, s.ID)
	}
	return ids
}

// Store is the durable record of showtimes, seats, reservations and
// payments. Atomic runs fn inside a single transactional unit of work:
// every mutation made through the Tx is committed together or not at
// all, and row locks taken through the Tx are held until then.
//
// The non-transactional methods are query-only (standard read
// consistency) except SetPaymentExternalRef, which is deliberately
// outside the checkout transaction: a slow or failed gateway call must
// not hold row locks, and a missing ref only means the webhook falls
// back to correlation-id resolution.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
	SeatsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error)
	CreateShowtime(ctx context.Context, st *model.Showtime, seatLabels []string) error

	GetReservation(ctx context.Context, id uint64) (*ReservationView, error)
	ListReservationsByUser(ctx context.Context, userID uint64, f ReservationFilter) ([]ReservationView, error)
	ListConfirmedReservations(ctx context.Context, p Page) ([]ReservationView, int64, error)
	RevenueCents(ctx context.Context, from, to time.Time) (uint64, error)

	GetPaymentByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
	SetPaymentExternalRef(ctx context.Context, paymentID uint64, ref string) error
}

// Tx exposes the row-locking mutations available inside one atomic unit
// of work. Implementations must guarantee that ...ForUpdate and
// LockSeats acquire exclusive row locks held until commit or rollback.
type Tx interface {
	// ShowtimeForUpdate loads a showtime under an exclusive row lock.
	// Returns ErrNotFound when the showtime does not exist.
	ShowtimeForUpdate(ctx context.Context, id uint64) (*model.Showtime, error)

	// LockSeats acquires exclusive locks on the seat rows with the given
	// ids scoped to the showtime and returns them. seatIDs must already
	// be sorted ascending; locking in that fixed order is what prevents
	// deadlock between overlapping concurrent requests. Ids that do not
	// exist or belong to another showtime are simply absent from the
	// result; the caller diffs the sets.
	LockSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.Seat, error)

	// AssignSeats marks the seats reserved and links them to the
	// reservation. The rows must already be locked via LockSeats.
	AssignSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64) error

	// ReleaseSeats clears the reserved flag and reservation link on
	// every seat held by the reservation and returns the freed seat ids.
	ReleaseSeats(ctx context.Context, reservationID uint64) ([]uint64, error)

	// AdjustAvailableSeats adds delta (which may be negative) to the
	// showtime's available-seat counter.
	AdjustAvailableSeats(ctx context.Context, showtimeID uint64, delta int32) error

	// CreateReservation inserts a reservation and populates its ID and
	// timestamps.
	CreateReservation(ctx context.Context, res *model.Reservation) error

	// ReservationForUpdate loads a reservation under an exclusive row
	// lock. Returns ErrNotFound when it does not exist.
	ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error)

	// SetReservationStatus updates the status and stamps updated_at.
	SetReservationStatus(ctx context.Context, id uint64, status string) error

	// MarkReservationPaid sets paid=true and stamps updated_at.
	MarkReservationPaid(ctx context.Context, id uint64) error

	// PaymentByExternalRef loads a payment by the gateway's reference id
	// under an exclusive row lock. Returns ErrNotFound when absent.
	PaymentByExternalRef(ctx context.Context, ref string) (*model.Payment, error)

	// PaymentByReservationForUpdate loads the payment keyed by the
	// reservation under an exclusive row lock. Returns ErrNotFound when
	// no payment row exists yet.
	PaymentByReservationForUpdate(ctx context.Context, reservationID uint64) (*model.Payment, error)

	// CreatePayment inserts a payment row and populates its ID.
	CreatePayment(ctx context.Context, p *model.Payment) error

	// SetPaymentStatus updates the status and stamps updated_at.
	SetPaymentStatus(ctx context.Context, id uint64, status string) error

	// SetPaymentExternalRef records the gateway reference on a payment.
	SetPaymentExternalRef(ctx context.Context, id uint64, ref string) error
}
