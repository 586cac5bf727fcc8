package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/cinetix/movie-reservation/internal/booking"
)

func stripeEvent(t *testing.T, eventType string, object interface{}) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return &stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestNormalizeCheckoutCompleted(t *testing.T) {
	ev := stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id":                  "cs_test_123",
		"client_reference_id": "42",
	})
	got, err := normalizeEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, booking.EventCheckoutCompleted, got.Kind)
	assert.Equal(t, "cs_test_123", got.ExternalRef)
	assert.EqualValues(t, 42, got.ReservationID)
}

func TestNormalizeIntentSucceededUsesMetadata(t *testing.T) {
	ev := stripeEvent(t, "payment_intent.succeeded", map[string]interface{}{
		"id":       "pi_test_123",
		"metadata": map[string]string{"reservation_id": "7"},
	})
	got, err := normalizeEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, booking.EventIntentSucceeded, got.Kind)
	assert.Equal(t, "pi_test_123", got.ExternalRef)
	assert.EqualValues(t, 7, got.ReservationID)
}

func TestNormalizeChargePrefersIntentRef(t *testing.T) {
	ev := stripeEvent(t, "charge.succeeded", map[string]interface{}{
		"id":             "ch_test_123",
		"payment_intent": "pi_test_456",
		"metadata":       map[string]string{"reservation_id": "9"},
	})
	got, err := normalizeEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, booking.EventChargeSucceeded, got.Kind)
	assert.Equal(t, "pi_test_456", got.ExternalRef)
	assert.EqualValues(t, 9, got.ReservationID)
}

func TestNormalizeUnknownTypeIsIgnored(t *testing.T) {
	ev := stripeEvent(t, "customer.created", map[string]interface{}{"id": "cus_1"})
	got, err := normalizeEvent(ev)
	require.NoError(t, err)
	assert.Equal(t, booking.EventIgnored, got.Kind)
}

func TestNormalizeMalformedPayload(t *testing.T) {
	ev := &stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id": 5`)},
	}
	_, err := normalizeEvent(ev)
	assert.ErrorIs(t, err, booking.ErrInvalidArgument)
}

func TestParseReservationID(t *testing.T) {
	assert.EqualValues(t, 42, parseReservationID("42", nil))
	assert.EqualValues(t, 7, parseReservationID("", map[string]string{"reservation_id": "7"}))
	// Client reference wins over metadata.
	assert.EqualValues(t, 1, parseReservationID("1", map[string]string{"reservation_id": "2"}))
	assert.Zero(t, parseReservationID("", nil))
	assert.Zero(t, parseReservationID("not-a-number", nil))
}
