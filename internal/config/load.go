package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load merges Default() + env overrides (FMC_*) + optional config.yaml.
func Load() (*Config, error) {
	cfg := Default()

	applyEnvOverrides(cfg)

	if _, err := os.Stat("config.yaml"); err == nil {
		fileCfg, err := loadFromFile("config.yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to load config.yaml: %w", err)
		}
		cfg = mergeConfigs(cfg, fileCfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies FMC_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("FMC_HTTP_ADDR"); val != "" {
		cfg.HTTPAddr = val
	}
	if val := os.Getenv("FMC_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.ReadTimeout = d
		}
	}
	if val := os.Getenv("FMC_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.WriteTimeout = d
		}
	}
	if val := os.Getenv("FMC_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.IdleTimeout = d
		}
	}

	if val := os.Getenv("FMC_WATCHDOG_PERIOD"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.WatchdogPeriod = d
		}
	}
	if val := os.Getenv("FMC_OFFLINE_AFTER"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.OfflineAfter = d
		}
	}

	if val := os.Getenv("FMC_HISTORY_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.HistoryCapacity = n
		}
	}
	if val := os.Getenv("FMC_WINDOW_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.WindowCapacity = n
		}
	}
	if val := os.Getenv("FMC_SUBSCRIBER_BUFFER"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.SubscriberBuffer = n
		}
	}
	if val := os.Getenv("FMC_INGEST_QUEUE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.IngestQueueSize = n
		}
	}

	if val := os.Getenv("FMC_NATS_URL"); val != "" {
		cfg.NATSURL = val
	}
	if val := os.Getenv("FMC_NATS_SUBJECT"); val != "" {
		cfg.NATSSubject = val
	}
	if val := os.Getenv("FMC_NATS_RECONNECT_WAIT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.NATSReconnectWait = d
		}
	}

	if val := os.Getenv("FMC_AUTH_SECRET"); val != "" {
		cfg.AuthSecret = val
	}
	if val := os.Getenv("FMC_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("FMC_AUDIT_DIR"); val != "" {
		cfg.AuditDir = val
	}
}

// loadFromFile loads configuration overrides from a YAML file.
func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file configuration over the current configuration.
// Only non-zero file values take precedence.
func mergeConfigs(current, file *Config) *Config {
	merged := *current

	if file.HTTPAddr != "" {
		merged.HTTPAddr = file.HTTPAddr
	}
	if file.ReadTimeout != 0 {
		merged.ReadTimeout = file.ReadTimeout
	}
	if file.WriteTimeout != 0 {
		merged.WriteTimeout = file.WriteTimeout
	}
	if file.IdleTimeout != 0 {
		merged.IdleTimeout = file.IdleTimeout
	}
	if file.WatchdogPeriod != 0 {
		merged.WatchdogPeriod = file.WatchdogPeriod
	}
	if file.OfflineAfter != 0 {
		merged.OfflineAfter = file.OfflineAfter
	}
	if file.HistoryCapacity != 0 {
		merged.HistoryCapacity = file.HistoryCapacity
	}
	if file.WindowCapacity != 0 {
		merged.WindowCapacity = file.WindowCapacity
	}
	if file.SubscriberBuffer != 0 {
		merged.SubscriberBuffer = file.SubscriberBuffer
	}
	if file.IngestQueueSize != 0 {
		merged.IngestQueueSize = file.IngestQueueSize
	}
	if file.NATSURL != "" {
		merged.NATSURL = file.NATSURL
	}
	if file.NATSSubject != "" {
		merged.NATSSubject = file.NATSSubject
	}
	if file.NATSReconnectWait != 0 {
		merged.NATSReconnectWait = file.NATSReconnectWait
	}
	if file.AuthSecret != "" {
		merged.AuthSecret = file.AuthSecret
	}
	if file.LogLevel != "" {
		merged.LogLevel = file.LogLevel
	}
	if file.AuditDir != "" {
		merged.AuditDir = file.AuditDir
	}

	return &merged
}
