package booking

import "context"

// EventKind enumerates the closed set of gateway notifications the
// reconciler acts on. Everything else maps to EventIgnored and is
// accepted without side effects, which keeps the handler forward
// compatible with new gateway event types.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventCheckoutCompleted
	EventIntentSucceeded
	EventChargeSucceeded
)

// String returns the wire-style name of the event kind, for logging.
func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout.session.completed"
	case EventIntentSucceeded:
		return "payment_intent.succeeded"
	case EventChargeSucceeded:
		return "charge.succeeded"
	default:
		return "ignored"
	}
}

// Event is a gateway notification normalized to what the reconciler
// needs: the kind, the gateway's stable reference for the transaction,
// and the client-supplied correlation id (our reservation id,
// propagated at checkout time; zero when the event did not carry one).
type Event struct {
	Kind          EventKind
	ExternalRef   string
	ReservationID uint64
}

// CheckoutParams describes a hosted checkout session request. The
// reservation id travels to the gateway as the correlation id so that
// webhook events can be resolved even before the external ref is known
// on our side.
type CheckoutParams struct {
	ReservationID uint64
	AmountCents   uint32
	Description   string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the gateway's answer: an opaque reference id for
// the transaction and the URL the customer is redirected to.
type CheckoutSession struct {
	Ref         string
	RedirectURL string
}

// PaymentGateway is the black-box payment collaborator. The core only
// requires session creation and authenticated event verification; card
// processing, tokenization and transport are the gateway's concern.
type PaymentGateway interface {
	// CreateCheckoutSession requests a hosted checkout session for the
	// given amount. It performs no local state changes.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)

	// VerifyEvent checks the payload's authenticity signature and
	// normalizes it. It must return ErrInvalidSignature (possibly
	// wrapped) when verification fails and ErrInvalidArgument for
	// payloads that verify but cannot be parsed.
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

// Notifier is the notification collaborator invoked after a
// reservation reaches the paid state. Calls are fire-and-forget from
// the core's perspective: a notifier failure never rolls back the
// payment transition.
type Notifier interface {
	ReservationPaid(ctx context.Context, res *ReservationView) error
}
