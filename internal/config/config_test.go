package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.WatchdogPeriod)
	assert.Equal(t, 30*time.Second, cfg.OfflineAfter)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, 10, cfg.WindowCapacity)
	assert.Equal(t, "telemetry.>", cfg.NATSSubject)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.AuthSecret)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FMC_HTTP_ADDR", ":9000")
	t.Setenv("FMC_WATCHDOG_PERIOD", "5s")
	t.Setenv("FMC_OFFLINE_AFTER", "15s")
	t.Setenv("FMC_HISTORY_CAPACITY", "50")
	t.Setenv("FMC_NATS_URL", "nats://localhost:4222")
	t.Setenv("FMC_NATS_SUBJECT", "fleet.telemetry")
	t.Setenv("FMC_AUTH_SECRET", "s3cret")
	t.Setenv("FMC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.WatchdogPeriod)
	assert.Equal(t, 15*time.Second, cfg.OfflineAfter)
	assert.Equal(t, 50, cfg.HistoryCapacity)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "fleet.telemetry", cfg.NATSSubject)
	assert.Equal(t, "s3cret", cfg.AuthSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadInvalidEnvValueIgnored(t *testing.T) {
	t.Setenv("FMC_WATCHDOG_PERIOD", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.WatchdogPeriod)
}

func TestLoadRejectsInvertedTimers(t *testing.T) {
	t.Setenv("FMC_OFFLINE_AFTER", "5s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offlineAfter")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errstr string
	}{
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }, "httpAddr"},
		{"zero period", func(c *Config) { c.WatchdogPeriod = 0 }, "watchdogPeriod"},
		{"zero history", func(c *Config) { c.HistoryCapacity = 0 }, "historyCapacity"},
		{"zero window", func(c *Config) { c.WindowCapacity = 0 }, "windowCapacity"},
		{"zero subscriber buffer", func(c *Config) { c.SubscriberBuffer = 0 }, "subscriberBuffer"},
		{"zero ingest queue", func(c *Config) { c.IngestQueueSize = 0 }, "ingestQueueSize"},
		{"nats url without subject", func(c *Config) { c.NATSURL = "nats://x"; c.NATSSubject = "" }, "natsSubject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errstr)
		})
	}
}

func TestMergeConfigsFileWins(t *testing.T) {
	base := Default()
	file := &Config{HTTPAddr: ":7070", HistoryCapacity: 25}

	merged := mergeConfigs(base, file)

	assert.Equal(t, ":7070", merged.HTTPAddr)
	assert.Equal(t, 25, merged.HistoryCapacity)
	// Zero file values leave the base untouched.
	assert.Equal(t, base.WatchdogPeriod, merged.WatchdogPeriod)
	assert.Equal(t, base.NATSSubject, merged.NATSSubject)
}
