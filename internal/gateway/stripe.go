// Package gateway contains the payment-gateway implementations behind
// the booking.PaymentGateway interface: the Stripe-backed one used in
// production and a deterministic mock used by tests and local runs
// without Stripe credentials.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/cinetix/movie-reservation/internal/booking"
)

// metadataReservationKey is the metadata key carrying our reservation id
// to Stripe and back. It is set on both the checkout session and the
// payment intent it spawns, so every webhook event we care about carries
// the correlation id regardless of which object it wraps.
const metadataReservationKey = "reservation_id"

// StripeGateway implements booking.PaymentGateway on top of Stripe
// hosted checkout sessions and signed webhook events.
type StripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

// StripeConfig holds the credentials and redirect URLs for the Stripe
// gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// NewStripeGateway validates the config and constructs the gateway.
// The secret key is installed globally, which is how the stripe-go
// client is designed to be configured.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}
	stripe.Key = cfg.SecretKey
	return &StripeGateway{
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}, nil
}

// CreateCheckoutSession opens a hosted checkout session for the full
// reservation amount. The reservation id travels as the session's
// client reference id and as metadata on both the session and the
// payment intent, so later webhook events can always be correlated.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p booking.CheckoutParams) (*booking.CheckoutSession, error) {
	rid := strconv.FormatUint(p.ReservationID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(rid),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(int64(p.AmountCents)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.Description),
					},
				},
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataReservationKey: rid},
		},
		Metadata: map[string]string{metadataReservationKey: rid},
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &booking.CheckoutSession{Ref: sess.ID, RedirectURL: sess.URL}, nil
}

// VerifyEvent authenticates the webhook payload against the endpoint
// secret and normalizes it into a booking.Event. Unrecognized event
// types verify fine but come back as EventIgnored.
func (g *StripeGateway) VerifyEvent(payload []byte, signature string) (*booking.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", booking.ErrInvalidSignature, err)
	}
	return normalizeEvent(&event)
}

// normalizeEvent maps a verified Stripe event onto the closed event set
// the reconciler understands.
func normalizeEvent(event *stripe.Event) (*booking.Event, error) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: malformed checkout.session.completed payload: %v", booking.ErrInvalidArgument, err)
		}
		rid := parseReservationID(sess.ClientReferenceID, sess.Metadata)
		return &booking.Event{
			Kind:          booking.EventCheckoutCompleted,
			ExternalRef:   sess.ID,
			ReservationID: rid,
		}, nil

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: malformed payment_intent.succeeded payload: %v", booking.ErrInvalidArgument, err)
		}
		return &booking.Event{
			Kind:          booking.EventIntentSucceeded,
			ExternalRef:   pi.ID,
			ReservationID: parseReservationID("", pi.Metadata),
		}, nil

	case "charge.succeeded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: malformed charge.succeeded payload: %v", booking.ErrInvalidArgument, err)
		}
		ref := ch.ID
		if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
			ref = ch.PaymentIntent.ID
		}
		return &booking.Event{
			Kind:          booking.EventChargeSucceeded,
			ExternalRef:   ref,
			ReservationID: parseReservationID("", ch.Metadata),
		}, nil

	default:
		return &booking.Event{Kind: booking.EventIgnored}, nil
	}
}

// parseReservationID extracts the correlation id from the client
// reference id, falling back to metadata. Zero means the event carried
// none, which the reconciler treats as unresolvable by correlation.
func parseReservationID(clientRef string, metadata map[string]string) uint64 {
	candidate := clientRef
	if candidate == "" {
		candidate = metadata[metadataReservationKey]
	}
	if candidate == "" {
		return 0
	}
	id, err := strconv.ParseUint(candidate, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
