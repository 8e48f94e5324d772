package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.Detector.Interval.Duration)
	assert.Equal(t, 15*time.Second, cfg.Coordinator.Interval.Duration)
	assert.Equal(t, 12*time.Second, cfg.Stager.PollInterval.Duration)
	assert.Equal(t, 10, cfg.Stager.MaxAttempts)
	assert.Equal(t, 5, cfg.Coordinator.Batch)
	assert.Equal(t, float64(20), cfg.Detector.MinSpreadBps)
	assert.Equal(t, []float64{1_000, 5_000, 10_000, 25_000, 50_000}, cfg.Optimizer.CandidateSizesUSD)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbd.toml")
	body := `
mode = "watch"
log_level = "debug"

[detector]
interval = "3s"
min_spread_bps = 35.0

[[detector.tuples]]
token = "WETH"
venue_a = "uniswap_v3"
venue_b = "sushiswap"

[[pricing.venues]]
name = "uniswap_v3"
chain = "ethereum"

[[pricing.venues]]
name = "sushiswap"
chain = "ethereum"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("ARBD_DETECTOR_MIN_SPREAD_BPS", "42.5")
	t.Setenv("ARBD_STORE_PASSWORD", "hunter2")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "watch", cfg.Mode)
	assert.Equal(t, 3*time.Second, cfg.Detector.Interval.Duration)
	// env override wins over the file value
	assert.Equal(t, 42.5, cfg.Detector.MinSpreadBps)
	assert.Equal(t, "hunter2", cfg.Store.Password)
	// defaults survive a partial file
	assert.Equal(t, float64(8), cfg.Optimizer.BridgeFeeUSD)

	require.Len(t, cfg.Detector.Tuples, 1)
	assert.Equal(t, "WETH", cfg.Detector.Tuples[0].Token)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }},
		{"zero spread", func(c *Config) { c.Detector.MinSpreadBps = 0 }},
		{"self tuple", func(c *Config) {
			c.Detector.Tuples = []WatchTupleConfig{{Token: "WETH", VenueA: "x", VenueB: "x"}}
		}},
		{"unknown venue", func(c *Config) {
			c.Pricing.Venues = []VenueConfig{{Name: "a", Chain: "ethereum"}}
			c.Detector.Tuples = []WatchTupleConfig{{Token: "WETH", VenueA: "a", VenueB: "b"}}
		}},
		{"http oracle without url", func(c *Config) { c.Gate.Oracle = "http" }},
		{"zero attempts", func(c *Config) { c.Stager.MaxAttempts = 0 }},
		{"no candidate sizes", func(c *Config) { c.Optimizer.CandidateSizesUSD = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Store.Password = "secret"
	cfg.Signer.PrivateKey = "deadbeef"
	cfg.Notify.Events = []string{"plan_executed"}

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Store.Password)
	assert.Equal(t, "***", red.Signer.PrivateKey)
	// original untouched
	assert.Equal(t, "secret", cfg.Store.Password)

	red.Notify.Events[0] = "mutated"
	assert.Equal(t, "plan_executed", cfg.Notify.Events[0])
}
