package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

// Store assembles the individual repositories into the booking.Store
// interface. Atomic maps one unit of work onto one MySQL transaction;
// the FOR UPDATE row locks taken inside are released at commit or
// rollback, which gives the booking core the serialization guarantees
// it documents.
type Store struct {
	db           *sql.DB
	showtimes    *ShowtimeRepo
	seats        *SeatRepo
	reservations *ReservationRepo
	payments     *PaymentRepo
}

// NewStore wires a Store over the shared DB handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		showtimes:    NewShowtimeRepo(db),
		seats:        NewSeatRepo(db),
		reservations: NewReservationRepo(db),
		payments:     NewPaymentRepo(db),
	}
}

// Atomic runs fn inside a single MySQL transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx booking.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = dbTx.Rollback()
		}
	}()
	if err := fn(&storeTx{store: s, tx: dbTx}); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetShowtime implements booking.Store.
func (s *Store) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	return s.showtimes.GetByID(ctx, id)
}

// SeatsByShowtime implements booking.Store.
func (s *Store) SeatsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	return s.seats.GetByShowtime(ctx, showtimeID)
}

// CreateShowtime implements booking.Store.
func (s *Store) CreateShowtime(ctx context.Context, st *model.Showtime, seatLabels []string) error {
	return s.showtimes.CreateWithSeats(ctx, st, seatLabels)
}

// GetReservation implements booking.Store.
func (s *Store) GetReservation(ctx context.Context, id uint64) (*booking.ReservationView, error) {
	return s.reservations.GetView(ctx, id)
}

// ListReservationsByUser implements booking.Store.
func (s *Store) ListReservationsByUser(ctx context.Context, userID uint64, f booking.ReservationFilter) ([]booking.ReservationView, error) {
	return s.reservations.ListByUser(ctx, userID, f)
}

// ListConfirmedReservations implements booking.Store.
func (s *Store) ListConfirmedReservations(ctx context.Context, p booking.Page) ([]booking.ReservationView, int64, error) {
	return s.reservations.ListConfirmed(ctx, p)
}

// RevenueCents implements booking.Store. The range is inclusive and
// compared against showtime start times in UTC.
func (s *Store) RevenueCents(ctx context.Context, from, to time.Time) (uint64, error) {
	const layout = "2006-01-02 15:04:05"
	return s.showtimes.RevenueCents(ctx, from.UTC().Format(layout), to.UTC().Format(layout))
}

// GetPaymentByReservation implements booking.Store.
func (s *Store) GetPaymentByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	return s.payments.GetByReservation(ctx, reservationID)
}

// SetPaymentExternalRef implements booking.Store.
func (s *Store) SetPaymentExternalRef(ctx context.Context, paymentID uint64, ref string) error {
	return s.payments.SetExternalRef(ctx, paymentID, ref)
}

// storeTx adapts one *sql.Tx to the booking.Tx interface by delegating
// to the repositories' Tx methods.
type storeTx struct {
	store *Store
	tx    *sql.Tx
}

func (t *storeTx) ShowtimeForUpdate(ctx context.Context, id uint64) (*model.Showtime, error) {
	return t.store.showtimes.GetForUpdateTx(ctx, t.tx, id)
}

func (t *storeTx) LockSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.Seat, error) {
	return t.store.seats.LockByIDsTx(ctx, t.tx, showtimeID, seatIDs)
}

func (t *storeTx) AssignSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64) error {
	return t.store.seats.AssignTx(ctx, t.tx, showtimeID, seatIDs, reservationID)
}

func (t *storeTx) ReleaseSeats(ctx context.Context, reservationID uint64) ([]uint64, error) {
	return t.store.seats.ReleaseByReservationTx(ctx, t.tx, reservationID)
}

func (t *storeTx) AdjustAvailableSeats(ctx context.Context, showtimeID uint64, delta int32) error {
	return t.store.showtimes.AdjustAvailableTx(ctx, t.tx, showtimeID, delta)
}

func (t *storeTx) CreateReservation(ctx context.Context, res *model.Reservation) error {
	return t.store.reservations.CreateTx(ctx, t.tx, res)
}

func (t *storeTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.store.reservations.GetForUpdateTx(ctx, t.tx, id)
}

func (t *storeTx) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	return t.store.reservations.SetStatusTx(ctx, t.tx, id, status)
}

func (t *storeTx) MarkReservationPaid(ctx context.Context, id uint64) error {
	return t.store.reservations.MarkPaidTx(ctx, t.tx, id)
}

func (t *storeTx) PaymentByExternalRef(ctx context.Context, ref string) (*model.Payment, error) {
	return t.store.payments.GetByExternalRefTx(ctx, t.tx, ref)
}

func (t *storeTx) PaymentByReservationForUpdate(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	return t.store.payments.GetByReservationForUpdateTx(ctx, t.tx, reservationID)
}

func (t *storeTx) CreatePayment(ctx context.Context, p *model.Payment) error {
	return t.store.payments.CreateTx(ctx, t.tx, p)
}

func (t *storeTx) SetPaymentStatus(ctx context.Context, id uint64, status string) error {
	return t.store.payments.SetStatusTx(ctx, t.tx, id, status)
}

func (t *storeTx) SetPaymentExternalRef(ctx context.Context, id uint64, ref string) error {
	return t.store.payments.SetExternalRefTx(ctx, t.tx, id, ref)
}
