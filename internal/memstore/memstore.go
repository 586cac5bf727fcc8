// Package memstore provides an in-memory implementation of the booking
// Store. It backs the core's unit tests and makes the server runnable
// without a database. Each atomic unit of work runs against a deep copy
// of the state that is swapped in only on success, so a failure
// mid-transaction leaves prior state untouched — the same all-or-nothing
// contract the MySQL store gets from transactions. A single mutex
// serializes transactions, which is the per-seat lock discipline
// collapsed to its simplest correct form.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

// Store is an in-memory booking.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

type state struct {
	showtimeSeq    uint64
	seatSeq        uint64
	reservationSeq uint64
	paymentSeq     uint64

	showtimes    map[uint64]*model.Showtime
	seats        map[uint64]*model.Seat
	reservations map[uint64]*model.Reservation
	payments     map[uint64]*model.Payment
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: &state{
		showtimes:    make(map[uint64]*model.Showtime),
		seats:        make(map[uint64]*model.Seat),
		reservations: make(map[uint64]*model.Reservation),
		payments:     make(map[uint64]*model.Payment),
	}}
}

func (s *state) clone() *state {
	c := &state{
		showtimeSeq:    s.showtimeSeq,
		seatSeq:        s.seatSeq,
		reservationSeq: s.reservationSeq,
		paymentSeq:     s.paymentSeq,
		showtimes:      make(map[uint64]*model.Showtime, len(s.showtimes)),
		seats:          make(map[uint64]*model.Seat, len(s.seats)),
		reservations:   make(map[uint64]*model.Reservation, len(s.reservations)),
		payments:       make(map[uint64]*model.Payment, len(s.payments)),
	}
	for id, v := range s.showtimes {
		cp := *v
		c.showtimes[id] = &cp
	}
	for id, v := range s.seats {
		cp := *v
		if v.ReservationID != nil {
			r := *v.ReservationID
			cp.ReservationID = &r
		}
		c.seats[id] = &cp
	}
	for id, v := range s.reservations {
		cp := *v
		c.reservations[id] = &cp
	}
	for id, v := range s.payments {
		cp := *v
		if v.ExternalRef != nil {
			r := *v.ExternalRef
			cp.ExternalRef = &r
		}
		c.payments[id] = &cp
	}
	return c
}

// Atomic runs fn against a private copy of the state and publishes the
// copy only when fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// GetShowtime returns a copy of the showtime or booking.ErrNotFound.
func (s *Store) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.showtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: showtime %d", booking.ErrNotFound, id)
	}
	cp := *st
	return &cp, nil
}

// SeatsByShowtime returns the showtime's seats ordered by id.
func (s *Store) SeatsByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Seat
	for _, seat := range s.st.seats {
		if seat.ShowtimeID == showtimeID {
			out = append(out, *seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateShowtime inserts a showtime and one seat row per label. Total
// and available seat counters are derived from the label count.
func (s *Store) CreateShowtime(ctx context.Context, st *model.Showtime, seatLabels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.st.showtimeSeq++
	st.ID = s.st.showtimeSeq
	st.TotalSeats = uint32(len(seatLabels))
	st.AvailableSeats = uint32(len(seatLabels))
	st.CreatedAt = now
	st.UpdatedAt = now
	cp := *st
	s.st.showtimes[st.ID] = &cp
	for _, label := range seatLabels {
		s.st.seatSeq++
		s.st.seats[s.st.seatSeq] = &model.Seat{
			ID:         s.st.seatSeq,
			ShowtimeID: st.ID,
			SeatLabel:  label,
		}
	}
	return nil
}

func (s *state) view(res *model.Reservation) booking.ReservationView {
	v := booking.ReservationView{Reservation: *res}
	for _, seat := range s.seats {
		if seat.ReservationID != nil && *seat.ReservationID == res.ID {
			v.Seats = append(v.Seats, *seat)
		}
	}
	sort.Slice(v.Seats, func(i, j int) bool { return v.Seats[i].ID < v.Seats[j].ID })
	return v
}

// GetReservation returns the reservation with its seats.
func (s *Store) GetReservation(ctx context.Context, id uint64) (*booking.ReservationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.st.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	v := s.st.view(res)
	return &v, nil
}

// ListReservationsByUser returns the user's reservations, newest first.
func (s *Store) ListReservationsByUser(ctx context.Context, userID uint64, f booking.ReservationFilter) ([]booking.ReservationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]booking.ReservationView, 0)
	for _, res := range s.st.reservations {
		if res.UserID != userID {
			continue
		}
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		if f.Paid != nil && res.Paid != *f.Paid {
			continue
		}
		out = append(out, s.st.view(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ListConfirmedReservations returns one page of CONFIRMED reservations
// (newest first) and the total CONFIRMED count.
func (s *Store) ListConfirmedReservations(ctx context.Context, p booking.Page) ([]booking.ReservationView, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]booking.ReservationView, 0)
	for _, res := range s.st.reservations {
		if res.Status == model.ReservationConfirmed {
			all = append(all, s.st.view(res))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	off := p.Offset()
	if off >= len(all) {
		return []booking.ReservationView{}, total, nil
	}
	end := off + p.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[off:end], total, nil
}

// RevenueCents sums CONFIRMED reservation totals for showtimes starting
// within [from, to].
func (s *Store) RevenueCents(ctx context.Context, from, to time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum uint64
	for _, res := range s.st.reservations {
		if res.Status != model.ReservationConfirmed {
			continue
		}
		st, ok := s.st.showtimes[res.ShowtimeID]
		if !ok {
			continue
		}
		if st.StartsAt.Before(from) || st.StartsAt.After(to) {
			continue
		}
		sum += uint64(res.TotalPriceCents)
	}
	return sum, nil
}

// GetPaymentByReservation returns the payment keyed by the reservation.
func (s *Store) GetPaymentByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.payments {
		if p.ReservationID == reservationID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: payment for reservation %d", booking.ErrNotFound, reservationID)
}

// SetPaymentExternalRef records the gateway reference on a payment.
func (s *Store) SetPaymentExternalRef(ctx context.Context, paymentID uint64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[paymentID]
	if !ok {
		return fmt.Errorf("%w: payment %d", booking.ErrNotFound, paymentID)
	}
	p.ExternalRef = &ref
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckInventoryInvariant verifies that availableSeats plus the number
// of seats held by CONFIRMED reservations equals totalSeats for the
// showtime, and that every seat's reserved flag matches its link.
func (s *Store) CheckInventoryInvariant(showtimeID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.st.showtimes[showtimeID]
	if !ok {
		return fmt.Errorf("%w: showtime %d", booking.ErrNotFound, showtimeID)
	}
	var reserved uint32
	for _, seat := range s.st.seats {
		if seat.ShowtimeID != showtimeID {
			continue
		}
		if seat.Reserved != (seat.ReservationID != nil) {
			return fmt.Errorf("seat %d: reserved flag out of sync with link", seat.ID)
		}
		if seat.Reserved {
			reserved++
		}
	}
	if st.AvailableSeats+reserved != st.TotalSeats {
		return fmt.Errorf("showtime %d: available %d + reserved %d != total %d",
			showtimeID, st.AvailableSeats, reserved, st.TotalSeats)
	}
	return nil
}

// memTx implements booking.Tx against a private state copy. The global
// store mutex is held for the whole transaction, so no further locking
// is needed here.
type memTx struct {
	st *state
}

func (t *memTx) ShowtimeForUpdate(ctx context.Context, id uint64) (*model.Showtime, error) {
	st, ok := t.st.showtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: showtime %d", booking.ErrNotFound, id)
	}
	cp := *st
	return &cp, nil
}

func (t *memTx) LockSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.Seat, error) {
	out := make([]model.Seat, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat, ok := t.st.seats[id]
		if !ok || seat.ShowtimeID != showtimeID {
			continue
		}
		out = append(out, *seat)
	}
	return out, nil
}

func (t *memTx) AssignSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64) error {
	for _, id := range seatIDs {
		seat, ok := t.st.seats[id]
		if !ok || seat.ShowtimeID != showtimeID {
			return fmt.Errorf("%w: seat %d", booking.ErrNotFound, id)
		}
		rid := reservationID
		seat.Reserved = true
		seat.ReservationID = &rid
	}
	return nil
}

func (t *memTx) ReleaseSeats(ctx context.Context, reservationID uint64) ([]uint64, error) {
	var released []uint64
	for _, seat := range t.st.seats {
		if seat.ReservationID != nil && *seat.ReservationID == reservationID {
			seat.Reserved = false
			seat.ReservationID = nil
			released = append(released, seat.ID)
		}
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released, nil
}

func (t *memTx) AdjustAvailableSeats(ctx context.Context, showtimeID uint64, delta int32) error {
	st, ok := t.st.showtimes[showtimeID]
	if !ok {
		return fmt.Errorf("%w: showtime %d", booking.ErrNotFound, showtimeID)
	}
	next := int64(st.AvailableSeats) + int64(delta)
	if next < 0 || next > int64(st.TotalSeats) {
		return fmt.Errorf("available seats for showtime %d out of range: %d", showtimeID, next)
	}
	st.AvailableSeats = uint32(next)
	st.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) CreateReservation(ctx context.Context, res *model.Reservation) error {
	t.st.reservationSeq++
	res.ID = t.st.reservationSeq
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now
	cp := *res
	t.st.reservations[res.ID] = &cp
	return nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, ok := t.st.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	cp := *res
	return &cp, nil
}

func (t *memTx) SetReservationStatus(ctx context.Context, id uint64, status string) error {
	res, ok := t.st.reservations[id]
	if !ok {
		return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	res.Status = status
	res.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) MarkReservationPaid(ctx context.Context, id uint64) error {
	res, ok := t.st.reservations[id]
	if !ok {
		return fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	res.Paid = true
	res.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) PaymentByExternalRef(ctx context.Context, ref string) (*model.Payment, error) {
	for _, p := range t.st.payments {
		if p.ExternalRef != nil && *p.ExternalRef == ref {
			cp := *p
			r := *p.ExternalRef
			cp.ExternalRef = &r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: payment for ref %q", booking.ErrNotFound, ref)
}

func (t *memTx) PaymentByReservationForUpdate(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	for _, p := range t.st.payments {
		if p.ReservationID == reservationID {
			cp := *p
			if p.ExternalRef != nil {
				r := *p.ExternalRef
				cp.ExternalRef = &r
			}
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: payment for reservation %d", booking.ErrNotFound, reservationID)
}

func (t *memTx) CreatePayment(ctx context.Context, p *model.Payment) error {
	t.st.paymentSeq++
	p.ID = t.st.paymentSeq
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	if p.ExternalRef != nil {
		r := *p.ExternalRef
		cp.ExternalRef = &r
	}
	t.st.payments[p.ID] = &cp
	return nil
}

func (t *memTx) SetPaymentStatus(ctx context.Context, id uint64, status string) error {
	p, ok := t.st.payments[id]
	if !ok {
		return fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (t *memTx) SetPaymentExternalRef(ctx context.Context, id uint64, ref string) error {
	p, ok := t.st.payments[id]
	if !ok {
		return fmt.Errorf("%w: payment %d", booking.ErrNotFound, id)
	}
	p.ExternalRef = &ref
	p.UpdatedAt = time.Now().UTC()
	return nil
}
