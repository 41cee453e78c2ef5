package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeYaml(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGetYaml(t *testing.T) {
	path := writeYaml(t, `
symbol: BTCUSDT
tick_size: "0.1"
bar_interval: 1m
number_of_bins: 5
imbalance_threshold_pct: 400
value_area_pct: 68
storage: redis
redis_addr: localhost:6379
`)

	cfg, err := getYaml(path)
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", cfg.Symbol)
	require.True(t, cfg.TickSize.Equal(decimal.NewFromFloat(0.1)))
	require.Equal(t, time.Minute, cfg.BarInterval)
	require.Equal(t, 5, cfg.NumberOfBins)
	require.Equal(t, 400.0, cfg.ImbalanceThresholdPct)
	require.Equal(t, 68.0, cfg.ValueAreaPct)
	require.Equal(t, "redis", cfg.Storage)
}

func TestGetYamlDefaults(t *testing.T) {
	path := writeYaml(t, `
symbol: ETHUSDT
tick_size: "0.01"
`)

	cfg, err := getYaml(path)
	require.NoError(t, err)
	require.Equal(t, defaultBarInterval, cfg.BarInterval)
	require.Equal(t, defaultNumberOfBins, cfg.NumberOfBins)
	require.Equal(t, "wal", cfg.Storage)
}

func TestGetYamlBadTickSize(t *testing.T) {
	path := writeYaml(t, `
symbol: BTCUSDT
tick_size: "abc"
`)

	_, err := getYaml(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Symbol:                "BTCUSDT",
		TickSize:              decimal.NewFromFloat(0.1),
		BarInterval:           time.Minute,
		NumberOfBins:          10,
		ImbalanceThresholdPct: 300,
		ValueAreaPct:          70,
		CacheSize:             100,
		Storage:               "wal",
	}
	require.NoError(t, validate(valid))

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty symbol", func(c *Config) { c.Symbol = "" }},
		{"zero tick size", func(c *Config) { c.TickSize = decimal.Zero }},
		{"zero bar interval", func(c *Config) { c.BarInterval = 0 }},
		{"negative bins", func(c *Config) { c.NumberOfBins = -1 }},
		{"value area over 100", func(c *Config) { c.ValueAreaPct = 101 }},
		{"imbalance below 100", func(c *Config) { c.ImbalanceThresholdPct = 50 }},
		{"zero cache size", func(c *Config) { c.CacheSize = 0 }},
		{"unknown storage", func(c *Config) { c.Storage = "s3" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			require.Error(t, validate(cfg))
		})
	}
}
