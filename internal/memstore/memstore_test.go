package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/model"
)

func TestAtomicRollsBackOnError(t *testing.T) {
	store := New()
	st := &model.Showtime{MovieID: 1, TheaterID: 1, StartsAt: time.Now().Add(time.Hour), PriceCents: 100}
	require.NoError(t, store.CreateShowtime(context.Background(), st, []string{"A1", "A2"}))

	boom := errors.New("boom")
	err := store.Atomic(context.Background(), func(tx booking.Tx) error {
		res := &model.Reservation{UserID: 1, ShowtimeID: st.ID, Status: model.ReservationConfirmed}
		if err := tx.CreateReservation(context.Background(), res); err != nil {
			return err
		}
		if err := tx.AssignSeats(context.Background(), st.ID, []uint64{1}, res.ID); err != nil {
			return err
		}
		if err := tx.AdjustAvailableSeats(context.Background(), st.ID, -1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every mutation made before the error is gone.
	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), after.AvailableSeats)
	seats, err := store.SeatsByShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	for _, s := range seats {
		assert.False(t, s.Reserved)
	}
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))
}

func TestAdjustAvailableSeatsBounds(t *testing.T) {
	store := New()
	st := &model.Showtime{MovieID: 1, TheaterID: 1, StartsAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.CreateShowtime(context.Background(), st, []string{"A1"}))

	err := store.Atomic(context.Background(), func(tx booking.Tx) error {
		return tx.AdjustAvailableSeats(context.Background(), st.ID, -2)
	})
	assert.Error(t, err, "counter must never go negative")

	err = store.Atomic(context.Background(), func(tx booking.Tx) error {
		return tx.AdjustAvailableSeats(context.Background(), st.ID, 1)
	})
	assert.Error(t, err, "counter must never exceed total seats")
}

func TestCloneIsolation(t *testing.T) {
	store := New()
	st := &model.Showtime{MovieID: 1, TheaterID: 1, StartsAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.CreateShowtime(context.Background(), st, []string{"A1"}))

	// Mutating entities returned from reads must not leak into the store.
	got, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	got.AvailableSeats = 0

	again, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), again.AvailableSeats)
}
