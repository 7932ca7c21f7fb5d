// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/venue-booking/internal/database"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env                  string        // APP_ENV: dev, test or prod
	Port                 string        // APP_PORT: HTTP port to listen on
	StoreDriver          string        // STORE_DRIVER: mysql (default) or memory
	DB                   database.Options
	JWTSecret            string        // JWT_SECRET: HMAC key for bearer tokens
	TokenTTL             time.Duration // TOKEN_TTL_MIN: lifetime of minted tokens
	ContactKey           string        // CONTACT_KEY: hex key sealing guest contact fields (optional)
	DefaultHoldTTL       time.Duration // DEFAULT_HOLD_TTL_MIN: used when a venue has no hold TTL
	RabbitURL            string        // RABBITMQ_URL: event sink broker; empty disables publishing
	EventsQueue          string        // EVENTS_QUEUE: durable queue receiving booking events
	EventConsumerEnabled bool          // EVENT_CONSUMER_ENABLED: run the journal consumer in-process
	EventLogPath         string        // EVENT_LOG_PATH: journal file written by the consumer
}

// ErrMissingEnv is wrapped by Load errors naming unset required variables.
var ErrMissingEnv = errors.New("missing required env var")

// Load reads configuration values from the environment.  A .env file in
// the working directory is loaded first when present; variables already
// set in the environment win.  Every unset required variable is reported
// in one error.  The returned Config is filled as far as possible even on
// error so callers can still build a logger from it.
func Load() (Config, error) {
	_ = godotenv.Load()

	var req required
	cfg := Config{
		Env:                  getenv("APP_ENV", "dev"),
		Port:                 getenv("APP_PORT", "8080"),
		StoreDriver:          getenv("STORE_DRIVER", DriverMySQL),
		JWTSecret:            req.get("JWT_SECRET"),
		TokenTTL:             time.Duration(envInt("TOKEN_TTL_MIN", 60)) * time.Minute,
		ContactKey:           os.Getenv("CONTACT_KEY"),
		DefaultHoldTTL:       time.Duration(envInt("DEFAULT_HOLD_TTL_MIN", 10)) * time.Minute,
		RabbitURL:            rabbitURL(),
		EventsQueue:          getenv("EVENTS_QUEUE", "booking.events"),
		EventConsumerEnabled: envBool("EVENT_CONSUMER_ENABLED", false),
		EventLogPath:         getenv("EVENT_LOG_PATH", "logs/booking-events.log"),
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DB = loadDatabase(&req)
	case DriverMemory:
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", cfg.StoreDriver, DriverMySQL, DriverMemory)
	}
	return cfg, req.err()
}

// LoadDatabase reads the DB_* variables.  All but DB_PASS are required.
func LoadDatabase() (database.Options, error) {
	_ = godotenv.Load()
	var req required
	opts := loadDatabase(&req)
	return opts, req.err()
}

func loadDatabase(req *required) database.Options {
	return database.Options{
		User:     req.get("DB_USER"),
		Password: os.Getenv("DB_PASS"), // empty allowed
		Host:     req.get("DB_HOST"),
		Port:     req.get("DB_PORT"),
		Name:     req.get("DB_NAME"),
	}
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool { return c.Env == "dev" }

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// required collects the names of unset required variables.
type required struct{ missing []string }

func (r *required) get(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *required) err() error {
	if len(r.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(r.missing, ", "))
}
