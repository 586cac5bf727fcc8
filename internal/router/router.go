// Package router wires the HTTP routes to their handlers and applies
// the authentication, role and rate-limit middleware.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/cinetix/movie-reservation/internal/handler"
	"github.com/cinetix/movie-reservation/internal/middleware"
	"github.com/cinetix/movie-reservation/internal/model"
)

// Handlers collects every handler the router registers.
type Handlers struct {
	Auth         *handler.AuthHandler
	Showtimes    *handler.ShowtimeHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
}

// Register wires all routes. rdb may be nil, which disables rate
// limiting on the reserve endpoint.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Unauthenticated: account creation, login, public browsing, and
	// the gateway webhook (authenticated by its signature instead).
	e.POST("/v1/auth/register", h.Auth.Register)
	e.POST("/v1/auth/login", h.Auth.Login)
	e.GET("/v1/showtimes/:id", h.Showtimes.Get)
	e.GET("/v1/showtimes/:id/seats", h.Showtimes.Seats)
	e.POST("/v1/payments/webhook", h.Payments.Webhook)

	// Authenticated customer surface.
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	auth.POST("/showtimes/:id/reservations", h.Reservations.Create,
		middleware.RateLimit(rdb, 10, time.Minute))
	auth.GET("/my-reservations", h.Reservations.ListMine)
	auth.GET("/reservations/:id", h.Reservations.Get)
	auth.DELETE("/reservations/:id", h.Reservations.Cancel)
	auth.POST("/reservations/:id/checkout", h.Payments.Checkout)

	// Admin surface.
	admin := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin))
	admin.POST("/showtimes", h.Showtimes.Create)
	admin.GET("/reservations", h.Reservations.AdminList)
	admin.GET("/revenue", h.Reservations.AdminRevenue)
}
