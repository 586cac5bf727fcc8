// Package config loads runtime configuration from the environment. A
// .env file, if present, is loaded first so local development does not
// need to export variables by hand.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime configuration value. Each field maps to
// one environment variable; strings for identifiers and secrets, ints
// for durations and costs.
type Config struct {
	Env          string // application environment (dev/test/prod)
	Port         string // HTTP port to listen on
	DBUser       string
	DBPass       string // optional, empty allowed
	DBHost       string
	DBPort       string
	DBName       string
	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string // customer redirect after a paid checkout
	CheckoutCancelURL   string // customer redirect after an abandoned checkout

	RabbitURL string // optional; empty disables the paid-event pipeline
}

// Load reads the configuration from the environment. Missing required
// variables are fatal; the server cannot run without them.
func Load() Config {
	// Ignore the error: a missing .env file just means the variables
	// come from the real environment.
	_ = godotenv.Load()

	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		StripeSecretKey:     must("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  must("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   must("CHECKOUT_CANCEL_URL"),

		RabbitURL: os.Getenv("RABBITMQ_URL"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but parses the value as an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
