package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/cinetix/movie-reservation/internal/booking"
)

// Mock is an in-memory booking.PaymentGateway for tests and for running
// the server without Stripe credentials. It is deterministic: checkout
// sessions get sequential refs, and VerifyEvent resolves the signature
// string against events registered up front with Stub.
type Mock struct {
	mu       sync.Mutex
	seq      int
	sessions []booking.CheckoutParams
	events   map[string]booking.Event

	// FailCheckout makes CreateCheckoutSession return an error, to
	// exercise the path where the gateway is down.
	FailCheckout bool
}

// NewMock returns an empty mock gateway.
func NewMock() *Mock {
	return &Mock{events: make(map[string]booking.Event)}
}

// CreateCheckoutSession records the request and hands back a session
// with a sequential reference id.
func (m *Mock) CreateCheckoutSession(ctx context.Context, p booking.CheckoutParams) (*booking.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCheckout {
		return nil, fmt.Errorf("mock gateway: checkout unavailable")
	}
	m.seq++
	m.sessions = append(m.sessions, p)
	ref := fmt.Sprintf("cs_mock_%03d", m.seq)
	return &booking.CheckoutSession{
		Ref:         ref,
		RedirectURL: "https://checkout.example.test/" + ref,
	}, nil
}

// Stub registers the event that VerifyEvent returns for the given
// signature.
func (m *Mock) Stub(signature string, ev booking.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[signature] = ev
}

// VerifyEvent treats the signature as a lookup key into the stubbed
// events; anything unregistered fails verification.
func (m *Mock) VerifyEvent(payload []byte, signature string) (*booking.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[signature]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mock signature %q", booking.ErrInvalidSignature, signature)
	}
	return &ev, nil
}

// Sessions returns a copy of every checkout request seen so far.
func (m *Mock) Sessions() []booking.CheckoutParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]booking.CheckoutParams, len(m.sessions))
	copy(out, m.sessions)
	return out
}
