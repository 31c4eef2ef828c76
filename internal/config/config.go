// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every runtime knob the binaries read from the environment.
// Values come from the process environment, optionally preloaded from a .env
// file by the caller.
type Config struct {
	AppEnv string // development, production
	Port   string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	AMQPURL string // empty -> in-memory dispatch queue

	FCMServerKey string
	PushTimeout  time.Duration

	SweepSecret    string
	SweepInterval  time.Duration
	StaleThreshold time.Duration

	DispatchBatchSize int
	SendErrorCap      int
}

func Load() *Config {
	return &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     os.Getenv("DB_NAME"),

		AMQPURL: os.Getenv("AMQP_URL"),

		FCMServerKey: os.Getenv("FCM_SERVER_KEY"),
		PushTimeout:  getDuration("PUSH_TIMEOUT", 10*time.Second),

		SweepSecret:    os.Getenv("SWEEP_SECRET"),
		SweepInterval:  getDuration("SWEEP_INTERVAL", 5*time.Minute),
		StaleThreshold: getDuration("STALE_THRESHOLD", 5*time.Minute),

		DispatchBatchSize: getInt("DISPATCH_BATCH_SIZE", 10),
		SendErrorCap:      getInt("SEND_ERROR_CAP", 25),
	}
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Development reports whether the server runs in development mode, which
// relaxes the sweep-endpoint secret check.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
