package main

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/cinetix/movie-reservation/internal/booking"
	"github.com/cinetix/movie-reservation/internal/config"
	"github.com/cinetix/movie-reservation/internal/database"
	"github.com/cinetix/movie-reservation/internal/gateway"
	"github.com/cinetix/movie-reservation/internal/handler"
	"github.com/cinetix/movie-reservation/internal/queue"
	"github.com/cinetix/movie-reservation/internal/repository"
	"github.com/cinetix/movie-reservation/internal/router"
)

func main() {
	cfg := config.Load()
	if cfg.Env == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	store := repository.NewStore(db)

	stripeGW, err := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.CheckoutSuccessURL,
		CancelURL:     cfg.CheckoutCancelURL,
	})
	if err != nil {
		logrus.WithError(err).Fatal("stripe gateway init failed")
	}

	var notifier booking.Notifier
	if cfg.RabbitURL != "" {
		notifier = queue.NewPublisher(cfg.RabbitURL)
		go queue.StartReceiptConsumer(cfg.RabbitURL)
	} else {
		logrus.Warn("RABBITMQ_URL not set; paid-event pipeline disabled")
	}

	allocator := booking.NewAllocator(store)
	lifecycle := booking.NewLifecycle(store)
	reconciler := booking.NewReconciler(store, stripeGW, notifier)

	rdb := config.NewRedisClient()
	if rdb == nil {
		logrus.Warn("redis unavailable; rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	router.Register(e, router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, repository.NewUserRepo(db)),
		Showtimes:    handler.NewShowtimeHandler(store),
		Reservations: handler.NewReservationHandler(allocator, lifecycle),
		Payments:     handler.NewPaymentHandler(reconciler, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
	}, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("server starting")
	if err := e.Start(addr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
