// Package queue defines the message payloads exchanged over RabbitMQ
// together with the publisher and the background receipt consumer.
package queue

// ReservationPaidEvent is published once a reservation transitions to
// paid. It carries enough for downstream consumers to write receipts or
// trigger notifications without querying the primary database.
type ReservationPaidEvent struct {
	ReservationID uint64   `json:"reservation_id"`
	UserID        uint64   `json:"user_id"`
	ShowtimeID    uint64   `json:"showtime_id"`
	SeatLabels    []string `json:"seats"`
	AmountCents   uint32   `json:"amount_cents"`
	PaidAt        string   `json:"paid_at"`
}
