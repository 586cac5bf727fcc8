package model

import "time"

// Payment status values. A payment row is created PENDING when checkout
// is initiated and advanced to a terminal status by the webhook
// reconciler. Re-applying an already-reached terminal status is a no-op.
const (
	PaymentPending   = "PENDING"
	PaymentSucceeded = "SUCCEEDED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Payment is the financial record for a reservation. At most one active
// payment row exists per reservation; multiple gateway events may
// reference the same row, which is why the reconciler treats it as an
// idempotent merge target rather than an event log.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation this payment settles (unique).
//  ExternalRef   – the gateway's opaque session/transaction id, if known.
//  AmountCents   – amount in cents, copied from the reservation.
//  Status        – PENDING, SUCCEEDED, FAILED or REFUNDED.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – stamped on every status transition.
type Payment struct {
	ID            uint64    // payments.id
	ReservationID uint64    // payments.reservation_id
	ExternalRef   *string   // payments.external_ref (nullable)
	AmountCents   uint32    // payments.amount_cents
	Status        string    // payments.status
	CreatedAt     time.Time // payments.created_at
	UpdatedAt     time.Time // payments.updated_at
}
