package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/gateway"
	"github.com/cinetix/movie-reservation/internal/memstore"
	"github.com/cinetix/movie-reservation/internal/model"
)

var (
	owner    = booking.Actor{UserID: 7, Role: model.RoleCustomer}
	stranger = booking.Actor{UserID: 8, Role: model.RoleCustomer}
	admin    = booking.Actor{UserID: 1, Role: model.RoleAdmin}
)

func TestCancelRestoresInventory(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2", "A3")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	view, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{1, 2})
	require.NoError(t, err)

	res, err := lc.Cancel(context.Background(), view.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, res.Status)

	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), after.AvailableSeats)

	seats, err := store.SeatsByShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	for _, s := range seats {
		assert.False(t, s.Reserved, "seat %d should be free again", s.ID)
	}
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))

	// The freed seats are immediately claimable by someone else.
	_, err = alloc.Reserve(context.Background(), st.ID, stranger.UserID, []uint64{1, 2})
	assert.NoError(t, err)
}

func TestCancelTwiceFails(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	view, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)

	_, err = lc.Cancel(context.Background(), view.ID, owner)
	require.NoError(t, err)

	_, err = lc.Cancel(context.Background(), view.ID, owner)
	assert.ErrorIs(t, err, booking.ErrInvalidState)

	// The double cancel must not have touched the counter again.
	after, err := store.GetShowtime(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), after.AvailableSeats)
}

func TestCancelAuthorization(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	view, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)

	_, err = lc.Cancel(context.Background(), view.ID, stranger)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	// Admins may cancel on behalf of anyone.
	_, err = lc.Cancel(context.Background(), view.ID, admin)
	assert.NoError(t, err)
}

func TestCancelAfterShowtimeStarted(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(-time.Minute), 1000, "A1", "A2")
	res := seedReservation(t, store, st, owner.UserID, []uint64{1})
	lc := booking.NewLifecycle(store)

	_, err := lc.Cancel(context.Background(), res.ID, owner)
	assert.ErrorIs(t, err, booking.ErrInvalidState)
	assert.NoError(t, store.CheckInventoryInvariant(st.ID))
}

func TestCancelPaidReservationLeavesPaymentSucceeded(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)
	gw := gateway.NewMock()
	rec := booking.NewReconciler(store, gw, nil)

	view, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)
	sess, err := rec.Checkout(context.Background(), view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)
	gw.Stub("sig", booking.Event{Kind: booking.EventCheckoutCompleted, ExternalRef: sess.Ref})
	require.NoError(t, rec.HandleEvent(context.Background(), []byte("{}"), "sig"))

	// Cancelling a paid reservation frees the seats; the settled payment
	// is untouched. Refunds are not part of this core.
	_, err = lc.Cancel(context.Background(), view.ID, owner)
	require.NoError(t, err)

	p, err := store.GetPaymentByReservation(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)

	got, err := lc.Get(context.Background(), view.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
	assert.True(t, got.Paid)
}

func TestGetAuthorization(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	view, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)

	_, err = lc.Get(context.Background(), view.ID, stranger)
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	got, err := lc.Get(context.Background(), view.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
}

func TestListForUserFilters(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2", "A3")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	first, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)
	second, err := alloc.Reserve(context.Background(), st.ID, owner.UserID, []uint64{2})
	require.NoError(t, err)
	_, err = lc.Cancel(context.Background(), first.ID, owner)
	require.NoError(t, err)

	all, err := lc.ListForUser(context.Background(), owner, booking.ReservationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	confirmed, err := lc.ListForUser(context.Background(), owner,
		booking.ReservationFilter{Status: model.ReservationConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, second.ID, confirmed[0].ID)

	unpaid := false
	views, err := lc.ListForUser(context.Background(), owner, booking.ReservationFilter{Paid: &unpaid})
	require.NoError(t, err)
	assert.Len(t, views, 2)

	none, err := lc.ListForUser(context.Background(), stranger, booking.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListConfirmedPagination(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1", "A2", "A3")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	for seat := uint64(1); seat <= 3; seat++ {
		_, err := alloc.Reserve(context.Background(), st.ID, seat, []uint64{seat})
		require.NoError(t, err)
	}

	_, _, err := lc.ListConfirmed(context.Background(), owner, booking.Page{Number: 1, PerPage: 2})
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	page1, total, err := lc.ListConfirmed(context.Background(), admin, booking.Page{Number: 1, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page1, 2)

	page2, _, err := lc.ListConfirmed(context.Background(), admin, booking.Page{Number: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
}

func TestRevenue(t *testing.T) {
	store := memstore.New()
	base := time.Now().Add(time.Hour).UTC()
	inRange := newShowtime(t, store, base, 1000, "A1", "A2")
	outOfRange := newShowtime(t, store, base.Add(48*time.Hour), 5000, "B1")
	alloc := booking.NewAllocator(store)
	lc := booking.NewLifecycle(store)

	kept, err := alloc.Reserve(context.Background(), inRange.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)
	cancelled, err := alloc.Reserve(context.Background(), inRange.ID, owner.UserID, []uint64{2})
	require.NoError(t, err)
	_, err = lc.Cancel(context.Background(), cancelled.ID, owner)
	require.NoError(t, err)
	_, err = alloc.Reserve(context.Background(), outOfRange.ID, owner.UserID, []uint64{3})
	require.NoError(t, err)

	_, err = lc.Revenue(context.Background(), owner, base.Add(-time.Hour), base.Add(time.Hour))
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = lc.Revenue(context.Background(), admin, base, base.Add(-time.Hour))
	assert.ErrorIs(t, err, booking.ErrInvalidArgument)

	// Only the surviving in-range reservation counts.
	sum, err := lc.Revenue(context.Background(), admin, base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(kept.TotalPriceCents), sum)
}
