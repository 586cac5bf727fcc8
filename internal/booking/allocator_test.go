package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/memstore"
	"github.com/cinetix/movie-reservation/internal/model"
)

func newShowtime(t *testing.T, store *memstore.Store, startsAt time.Time, priceCents uint32, labels ...string) *model.Showtime {
	t.Helper()
	st := &model.Showtime{
		MovieID:    1,
		TheaterID:  1,
		StartsAt:   startsAt,
		PriceCents: priceCents,
	}
	require.NoError(t, store.CreateShowtime(context.Background(), st, labels))
	return st
}

// seedReservation hand-crafts a CONFIRMED reservation directly in the
// store, bypassing the allocator's not-started check. Used to build
// states that can only arise with the passage of time.
func seedReservation(t *testing.T, store *memstore.Store, st *model.Showtime, userID uint64, seatIDs []uint64) *model.Reservation {
	t.Helper()
	res := &model.Reservation{
		UserID:          userID,
		ShowtimeID:      st.ID,
		Status:          model.ReservationConfirmed,
		TotalPriceCents: st.PriceCents * uint32(len(seatIDs)),
	}
	err := store.Atomic(context.Background(), func(tx booking.Tx) error {
		if err := tx.CreateReservation(context.Background(), res); err != nil {
			return err
		}
		if err := tx.AssignSeats(context.Background(), st.ID, seatIDs, res.ID); err != nil {
			return err
		}
		return tx.AdjustAvailableSeats(context.Background(), st.ID, -int32(len(seatIDs)))
	})
	require.NoError(t, err)
	return res
}

func TestReserveClaimsSeatsAtomically(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1250, "A1", "A2", "A3", "A4")
	alloc := booking.NewAllocator(store)

	view, err := alloc.Reserve(context.Background(), st.ID, 7, []uint64{3, 1})
	require.NoError(t, err)

	assert.Equal(t, model.ReservationConfirmed, view.Status)
	assert.False(t, view.Paid)
	assert.Equal(t, uint32(2500), view.TotalPriceCents)
	assert.Equal(t, []uint64{1, 3}, view.SeatIDs())

	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), after.AvailableSeats)
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))
}

func TestReserveShowtimeNotFound(t *testing.T) {
	alloc := booking.NewAllocator(memstore.New())
	_, err := alloc.Reserve(context.Background(), 42, 1, []uint64{1})
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestReserveRejectsStartedShowtime(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(-time.Minute), 1000, "A1", "A2")
	alloc := booking.NewAllocator(store)

	_, err := alloc.Reserve(context.Background(), st.ID, 1, []uint64{1})
	assert.ErrorIs(t, err, booking.ErrInvalidState)
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))
}

func TestReserveValidatesSeatList(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2")
	alloc := booking.NewAllocator(store)

	_, err := alloc.Reserve(context.Background(), st.ID, 1, nil)
	assert.ErrorIs(t, err, booking.ErrInvalidArgument)

	_, err = alloc.Reserve(context.Background(), st.ID, 1, []uint64{2, 1, 2})
	assert.ErrorIs(t, err, booking.ErrInvalidArgument)
}

func TestReserveUnknownSeatsNamesThem(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2")
	alloc := booking.NewAllocator(store)

	_, err := alloc.Reserve(context.Background(), st.ID, 1, []uint64{1, 99})
	var unknown *booking.UnknownSeatsError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []uint64{99}, unknown.SeatIDs)
	assert.ErrorIs(t, err, booking.ErrNotFound)

	// Nothing may have been claimed by the failed attempt.
	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), after.AvailableSeats)
}

func TestReserveConflictNamesContestedSeats(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2", "A3")
	alloc := booking.NewAllocator(store)

	_, err := alloc.Reserve(context.Background(), st.ID, 1, []uint64{1, 2})
	require.NoError(t, err)

	_, err = alloc.Reserve(context.Background(), st.ID, 2, []uint64{2, 3})
	var conflict *booking.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uint64{2}, conflict.SeatIDs)
	assert.ErrorIs(t, err, booking.ErrSeatsUnavailable)

	// The loser's request must not have claimed seat 3.
	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), after.AvailableSeats)
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))
}

func TestReserveExhaustedFastPath(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2")
	alloc := booking.NewAllocator(store)

	_, err := alloc.Reserve(context.Background(), st.ID, 1, []uint64{1, 2})
	require.NoError(t, err)

	_, err = alloc.Reserve(context.Background(), st.ID, 2, []uint64{1})
	assert.ErrorIs(t, err, booking.ErrExhausted)
}

func TestConcurrentReserveSameSeatOneWinner(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2", "A3")
	alloc := booking.NewAllocator(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = alloc.Reserve(context.Background(), st.ID, uint64(i+1), []uint64{2})
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, booking.ErrSeatsUnavailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one request must win the seat")
	assert.Equal(t, 1, conflicts, "the loser must observe a seat conflict")

	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), after.AvailableSeats)
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))
}
