package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/model"
)

// Reconciler consumes asynchronous, possibly duplicated and out-of-order
// payment notifications and advances the reservation/payment pair
// idempotently. It also initiates checkout sessions against the
// external gateway. Payment rows are the only state it mutates; seat
// and showtime rows are never touched here, because payment confirms
// the financial leg, not the inventory leg.
type Reconciler struct {
	store    Store
	gateway  PaymentGateway
	notifier Notifier // optional; nil disables paid notifications
}

// NewReconciler constructs a Reconciler. notifier may be nil.
func NewReconciler(store Store, gateway PaymentGateway, notifier Notifier) *Reconciler {
	if store == nil || gateway == nil {
		panic("nil dependency passed to NewReconciler")
	}
	return &Reconciler{store: store, gateway: gateway, notifier: notifier}
}

// Checkout creates or reuses a PENDING payment for the reservation and
// requests a hosted checkout session from the gateway for the
// reservation's total price. The pending row is committed before the
// external call so a slow or failed gateway never holds row locks; a
// failed call leaves the payment PENDING and checkout can simply be
// retried. Seat and showtime state are not mutated.
//
// Returns ErrAlreadyPaid when a SUCCEEDED payment already exists,
// ErrInvalidState for cancelled reservations, and ErrUnauthorized when
// the actor neither owns the reservation nor is an admin.
func (r *Reconciler) Checkout(ctx context.Context, reservationID uint64, actor Actor, successURL, cancelURL string) (*CheckoutSession, error) {
	res, err := r.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.UserID && !actor.Admin() {
		return nil, ErrUnauthorized
	}
	if res.Status != model.ReservationConfirmed {
		return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
	}
	if res.Paid {
		return nil, ErrAlreadyPaid
	}

	var payment *model.Payment
	err = r.store.Atomic(ctx, func(tx Tx) error {
		p, err := tx.PaymentByReservationForUpdate(ctx, reservationID)
		switch {
		case err == nil:
			if p.Status == model.PaymentSucceeded {
				return ErrAlreadyPaid
			}
			// Reuse the existing row; a fresh session supersedes any
			// earlier abandoned one.
			if p.Status != model.PaymentPending {
				if err := tx.SetPaymentStatus(ctx, p.ID, model.PaymentPending); err != nil {
					return err
				}
				p.Status = model.PaymentPending
			}
			payment = p
			return nil
		case errors.Is(err, ErrNotFound):
			p = &model.Payment{
				ReservationID: reservationID,
				AmountCents:   res.TotalPriceCents,
				Status:        model.PaymentPending,
			}
			if err := tx.CreatePayment(ctx, p); err != nil {
				return err
			}
			payment = p
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	sess, err := r.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		ReservationID: reservationID,
		AmountCents:   res.TotalPriceCents,
		Description:   fmt.Sprintf("reservation #%d", reservationID),
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		// The payment stays PENDING; nothing to undo.
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if err := r.store.SetPaymentExternalRef(ctx, payment.ID, sess.Ref); err != nil {
		// The session exists either way; webhook resolution falls back
		// to the correlation id when the ref is missing.
		logrus.WithError(err).WithField("payment_id", payment.ID).
			Warn("failed to record checkout session ref")
	}
	return sess, nil
}

// HandleEvent verifies and applies one gateway notification. The
// signature check happens before any state is read; an event that fails
// it is rejected with ErrInvalidSignature and no side effects. Unknown
// event kinds are accepted and ignored. Each event application is one
// atomic unit of work, so a mid-event failure leaves prior state
// untouched and the gateway's redelivery can safely retry.
//
// Resolution order: by the gateway's external reference first, then by
// the correlation id (our reservation id), lazily creating the payment
// row in the latter case. A payment that is already SUCCEEDED makes the
// event a no-op, which is what makes redelivery and reordering safe.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := r.gateway.VerifyEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			logrus.WithError(err).Warn("rejected webhook event: bad signature")
			return err
		}
		logrus.WithError(err).Warn("rejected webhook event: malformed payload")
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if ev.Kind == EventIgnored {
		logrus.Debug("ignoring unhandled webhook event kind")
		return nil
	}

	var (
		applied       bool
		reservationID uint64
	)
	err = r.store.Atomic(ctx, func(tx Tx) error {
		p, err := r.resolvePayment(ctx, tx, ev)
		if err != nil {
			return err
		}
		if p.Status == model.PaymentSucceeded {
			// Idempotent replay: same terminal state, no side effects.
			return nil
		}
		if err := tx.SetPaymentStatus(ctx, p.ID, model.PaymentSucceeded); err != nil {
			return err
		}
		if (p.ExternalRef == nil || *p.ExternalRef == "") && ev.ExternalRef != "" {
			if err := tx.SetPaymentExternalRef(ctx, p.ID, ev.ExternalRef); err != nil {
				return err
			}
		}
		if err := tx.MarkReservationPaid(ctx, p.ReservationID); err != nil {
			return err
		}
		applied = true
		reservationID = p.ReservationID
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"kind":         ev.Kind.String(),
			"external_ref": ev.ExternalRef,
		}).Error("failed to apply payment event")
		return err
	}
	if !applied {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"kind":           ev.Kind.String(),
		"external_ref":   ev.ExternalRef,
		"reservation_id": reservationID,
	}).Info("payment succeeded")
	r.notifyPaid(ctx, reservationID)
	return nil
}

// resolvePayment locates (or lazily creates) the payment row targeted
// by an event, locking it for the remainder of the transaction.
func (r *Reconciler) resolvePayment(ctx context.Context, tx Tx, ev *Event) (*model.Payment, error) {
	if ev.ExternalRef != "" {
		p, err := tx.PaymentByExternalRef(ctx, ev.ExternalRef)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if ev.ReservationID == 0 {
		return nil, fmt.Errorf("%w: payment for ref %q", ErrNotFound, ev.ExternalRef)
	}
	p, err := tx.PaymentByReservationForUpdate(ctx, ev.ReservationID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// The event can arrive before checkout recorded anything, or for a
	// session created out of band. Create the payment on the spot.
	res, err := tx.ReservationForUpdate(ctx, ev.ReservationID)
	if err != nil {
		return nil, err
	}
	p = &model.Payment{
		ReservationID: res.ID,
		AmountCents:   res.TotalPriceCents,
		Status:        model.PaymentPending,
	}
	if ev.ExternalRef != "" {
		ref := ev.ExternalRef
		p.ExternalRef = &ref
	}
	if err := tx.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// notifyPaid invokes the notification collaborator outside the payment
// transaction. Failures are logged and dropped: receipts must never
// roll back a settled payment.
func (r *Reconciler) notifyPaid(ctx context.Context, reservationID uint64) {
	if r.notifier == nil {
		return
	}
	view, err := r.store.GetReservation(ctx, reservationID)
	if err != nil {
		logrus.WithError(err).WithField("reservation_id", reservationID).
			Warn("paid notification skipped: reload failed")
		return
	}
	if err := r.notifier.ReservationPaid(ctx, view); err != nil {
		logrus.WithError(err).WithField("reservation_id", reservationID).
			Warn("paid notification failed")
	}
}
