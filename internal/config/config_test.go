package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRADEBOT_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.03, cfg.CommissionRate)
	assert.Equal(t, time.Hour, cfg.PriceCacheTTL)
	assert.Equal(t, float64(90), cfg.RubUsdDivisor)
	assert.Equal(t, 24*time.Hour, cfg.StalePendingAfter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADEBOT_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("COMMISSION_RATE", "0.05")
	t.Setenv("PRICE_CACHE_TTL", "30m")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 0.05, cfg.CommissionRate)
	assert.Equal(t, 30*time.Minute, cfg.PriceCacheTTL)
	assert.True(t, cfg.DevMode)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative commission", func(c *Config) { c.CommissionRate = -0.01 }},
		{"commission of one", func(c *Config) { c.CommissionRate = 1.0 }},
		{"zero divisor", func(c *Config) { c.RubUsdDivisor = 0 }},
		{"zero cache size", func(c *Config) { c.PriceCacheSize = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{CommissionRate: 0.03, RubUsdDivisor: 90, PriceCacheSize: 100}
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_IgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv("TRADEBOT_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")
	t.Setenv("COMMISSION_RATE", "three percent")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, 0.03, cfg.CommissionRate)
}
