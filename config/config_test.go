package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, int64(100), cfg.ConversionRate)
	assert.Equal(t, int64(100), cfg.ConversionMinPoints)
	assert.Equal(t, 3*time.Second, cfg.LockWait)
	assert.Equal(t, "wallet_events", cfg.AMQP.Queue)
}

func TestLoad_UnparseableValuesFallBackToDefaults(t *testing.T) {
	// A typo in the environment must not silently become zero.

	t.Setenv("HTTP_PORT", "abc")
	t.Setenv("CONVERSION_RATE", "lots")
	t.Setenv("LOCK_WAIT_MS", "3s")

	cfg := Load()

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, int64(100), cfg.ConversionRate)
	assert.Equal(t, 3*time.Second, cfg.LockWait)
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CONVERSION_RATE", "50")
	t.Setenv("DEFAULT_CURRENCY", "EUR")

	cfg := Load()

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, int64(50), cfg.ConversionRate)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
}