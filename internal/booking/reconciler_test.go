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

type reconcilerFixture struct {
	store *memstore.Store
	gw    *gateway.Mock
	rec   *booking.Reconciler
	view  *booking.ReservationView
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1500, "A1", "A2")
	view, err := booking.NewAllocator(store).Reserve(context.Background(), st.ID, owner.UserID, []uint64{1, 2})
	require.NoError(t, err)
	gw := gateway.NewMock()
	return &reconcilerFixture{
		store: store,
		gw:    gw,
		rec:   booking.NewReconciler(store, gw, nil),
		view:  view,
	}
}

func TestCheckoutCreatesPendingPayment(t *testing.T) {
	f := newReconcilerFixture(t)

	sess, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Ref)
	assert.NotEmpty(t, sess.RedirectURL)

	p, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, f.view.TotalPriceCents, p.AmountCents)
	require.NotNil(t, p.ExternalRef)
	assert.Equal(t, sess.Ref, *p.ExternalRef)

	// The full amount went to the gateway.
	sessions := f.gw.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, f.view.ID, sessions[0].ReservationID)
	assert.Equal(t, f.view.TotalPriceCents, sessions[0].AmountCents)
}

func TestCheckoutRetryReusesPaymentRow(t *testing.T) {
	f := newReconcilerFixture(t)

	first, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)
	second, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)
	assert.NotEqual(t, first.Ref, second.Ref)

	// Still exactly one payment row, now pointing at the newer session.
	p, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	require.NotNil(t, p.ExternalRef)
	assert.Equal(t, second.Ref, *p.ExternalRef)
}

func TestCheckoutGatewayFailureLeavesPending(t *testing.T) {
	f := newReconcilerFixture(t)
	f.gw.FailCheckout = true

	_, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.Error(t, err)

	// The pending row committed before the gateway call and survives it.
	p, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Nil(t, p.ExternalRef)

	// A retry simply picks the row back up.
	f.gw.FailCheckout = false
	sess, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Ref)
}

func TestCheckoutGuards(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.rec.Checkout(context.Background(), f.view.ID, stranger, "https://s", "https://c")
	assert.ErrorIs(t, err, booking.ErrUnauthorized)

	_, err = f.rec.Checkout(context.Background(), 404, owner, "https://s", "https://c")
	assert.ErrorIs(t, err, booking.ErrNotFound)

	lc := booking.NewLifecycle(f.store)
	_, err = lc.Cancel(context.Background(), f.view.ID, owner)
	require.NoError(t, err)
	_, err = f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	assert.ErrorIs(t, err, booking.ErrInvalidState)
}

func TestEventSettlesPaymentByExternalRef(t *testing.T) {
	f := newReconcilerFixture(t)
	sess, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)

	f.gw.Stub("sig-ok", booking.Event{Kind: booking.EventCheckoutCompleted, ExternalRef: sess.Ref})
	require.NoError(t, f.rec.HandleEvent(context.Background(), []byte("{}"), "sig-ok"))

	p, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)

	got, err := f.store.GetReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	_, err = f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	assert.ErrorIs(t, err, booking.ErrAlreadyPaid)
}

func TestEventReplayAndDuplicatesAreNoOps(t *testing.T) {
	f := newReconcilerFixture(t)
	sess, err := f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	require.NoError(t, err)

	// The same settlement arrives three times under different guises:
	// the session completion twice, then the charge notification.
	f.gw.Stub("sig-1", booking.Event{Kind: booking.EventCheckoutCompleted, ExternalRef: sess.Ref})
	f.gw.Stub("sig-2", booking.Event{Kind: booking.EventCheckoutCompleted, ExternalRef: sess.Ref})
	f.gw.Stub("sig-3", booking.Event{Kind: booking.EventChargeSucceeded, ReservationID: f.view.ID})

	for _, sig := range []string{"sig-1", "sig-2", "sig-3"} {
		require.NoError(t, f.rec.HandleEvent(context.Background(), []byte("{}"), sig))
	}

	p, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)
	require.NotNil(t, p.ExternalRef)
	assert.Equal(t, sess.Ref, *p.ExternalRef, "replays must not clobber the recorded ref")
}

func TestEventBeforeCheckoutResolvesByCorrelationID(t *testing.T) {
	f := newReconcilerFixture(t)

	// The success event overtakes the checkout bookkeeping entirely: no
	// payment row exists yet when it lands.
	f.gw.Stub("sig-early", booking.Event{
		Kind:          booking.EventIntentSucceeded,
		ExternalRef:   "pi_out_of_band",
		ReservationID: f.view.ID,
	})
	require.NoError(t, f.rec.HandleEvent(context.Background(), []byte("{}"), "sig-early"))

	p, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)
	assert.Equal(t, f.view.TotalPriceCents, p.AmountCents)
	require.NotNil(t, p.ExternalRef)
	assert.Equal(t, "pi_out_of_band", *p.ExternalRef)

	got, err := f.store.GetReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	_, err = f.rec.Checkout(context.Background(), f.view.ID, owner, "https://s", "https://c")
	assert.ErrorIs(t, err, booking.ErrAlreadyPaid)
}

func TestIgnoredEventKindIsAccepted(t *testing.T) {
	f := newReconcilerFixture(t)
	f.gw.Stub("sig-noise", booking.Event{Kind: booking.EventIgnored})

	require.NoError(t, f.rec.HandleEvent(context.Background(), []byte("{}"), "sig-noise"))

	_, err := f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestInvalidSignatureHasNoSideEffects(t *testing.T) {
	f := newReconcilerFixture(t)

	err := f.rec.HandleEvent(context.Background(), []byte("{}"), "never-registered")
	assert.ErrorIs(t, err, booking.ErrInvalidSignature)

	_, err = f.store.GetPaymentByReservation(context.Background(), f.view.ID)
	assert.ErrorIs(t, err, booking.ErrNotFound)

	got, err := f.store.GetReservation(context.Background(), f.view.ID)
	require.NoError(t, err)
	assert.False(t, got.Paid)
}

func TestEventForUnknownReservationFailsAtomically(t *testing.T) {
	f := newReconcilerFixture(t)
	f.gw.Stub("sig-dangling", booking.Event{
		Kind:          booking.EventChargeSucceeded,
		ExternalRef:   "pi_dangling",
		ReservationID: 9999,
	})

	err := f.rec.HandleEvent(context.Background(), []byte("{}"), "sig-dangling")
	assert.ErrorIs(t, err, booking.ErrNotFound)

	// The failed event must not have created a payment row.
	_, err = f.store.GetPaymentByReservation(context.Background(), 9999)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

// paidNotifier records paid notifications for assertions.
type paidNotifier struct {
	calls []uint64
	fail  bool
}

func (n *paidNotifier) ReservationPaid(ctx context.Context, res *booking.ReservationView) error {
	n.calls = append(n.calls, res.ID)
	if n.fail {
		return assert.AnError
	}
	return nil
}

func TestPaidNotificationFiresOncePerSettlement(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1")
	view, err := booking.NewAllocator(store).Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)

	gw := gateway.NewMock()
	notifier := &paidNotifier{}
	rec := booking.NewReconciler(store, gw, notifier)

	gw.Stub("sig", booking.Event{Kind: booking.EventIntentSucceeded, ReservationID: view.ID})
	require.NoError(t, rec.HandleEvent(context.Background(), []byte("{}"), "sig"))
	require.NoError(t, rec.HandleEvent(context.Background(), []byte("{}"), "sig"))

	assert.Equal(t, []uint64{view.ID}, notifier.calls, "replay must not re-notify")
}

func TestNotifierFailureDoesNotFailEvent(t *testing.T) {
	store := memstore.New()
	st := newShowtime(t, store, time.Now().Add(time.Hour), 1000, "A1")
	view, err := booking.NewAllocator(store).Reserve(context.Background(), st.ID, owner.UserID, []uint64{1})
	require.NoError(t, err)

	gw := gateway.NewMock()
	rec := booking.NewReconciler(store, gw, &paidNotifier{fail: true})

	gw.Stub("sig", booking.Event{Kind: booking.EventIntentSucceeded, ReservationID: view.ID})
	require.NoError(t, rec.HandleEvent(context.Background(), []byte("{}"), "sig"))

	got, err := store.GetReservation(context.Background(), view.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
}
