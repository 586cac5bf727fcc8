package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/booking"
)

const paidQueueName = "reservation.paid"

// Publisher implements booking.Notifier by publishing paid-reservation
// events to RabbitMQ. Each publish dials a fresh connection; volume is
// one message per successful payment, so connection churn is not a
// concern and the publisher never has to track broker state. Errors are
// logged and returned so callers can ignore them without interrupting
// the request flow.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// ReservationPaid publishes a ReservationPaidEvent for the reservation.
// Messages are persistent and go to the durable reservation.paid queue.
func (p *Publisher) ReservationPaid(ctx context.Context, res *booking.ReservationView) error {
	labels := make([]string, 0, len(res.Seats))
	for _, s := range res.Seats {
		labels = append(labels, s.SeatLabel)
	}
	event := ReservationPaidEvent{
		ReservationID: res.ID,
		UserID:        res.UserID,
		ShowtimeID:    res.ShowtimeID,
		SeatLabels:    labels,
		AmountCents:   res.TotalPriceCents,
		PaidAt:        time.Now().UTC().Format(time.RFC3339),
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(paidQueueName, true, false, false, false, nil); err != nil {
		logrus.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", paidQueueName, false, false, pub); err != nil {
		logrus.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}
