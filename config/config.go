// Package config loads service configuration from the environment.
// A .env file is honored when present; every value has a default so the
// service runs with zero configuration in development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort int
	DBPath   string

	// DefaultCurrency is assigned to accounts on first mutation and
	// reported for accounts that have never been written.
	DefaultCurrency string

	// Conversion policy: PointsPerUnit points buy one currency unit;
	// conversions below MinPoints are rejected.
	ConversionRate      int64
	ConversionMinPoints int64

	// LockWait bounds how long a mutation waits for the per-account lock
	// before failing with a retryable contention error.
	LockWait time.Duration

	AMQP AMQPConfig
}

// AMQPConfig configures the internal wallet-events consumer.
// An empty URL disables the consumer entirely.
type AMQPConfig struct {
	URL   string
	Queue string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
		DBPath:              getEnv("DB_PATH", "wallet.db"),
		DefaultCurrency:     getEnv("DEFAULT_CURRENCY", "USD"),
		ConversionRate:      getEnvInt64("CONVERSION_RATE", 100),
		ConversionMinPoints: getEnvInt64("CONVERSION_MIN_POINTS", 100),
		LockWait:            time.Duration(getEnvInt("LOCK_WAIT_MS", 3000)) * time.Millisecond,
		AMQP: AMQPConfig{
			URL:   getEnv("AMQP_URL", ""),
			Queue: getEnv("AMQP_QUEUE", "wallet_events"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Unparseable numeric values fall back to the default instead of
// silently becoming zero.
func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithField(key, raw).Warnf("invalid %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logrus.WithField(key, raw).Warnf("invalid %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}
