package config

import (
	"fmt"
	"time"
)

// Config holds all runtime settings for the container.
type Config struct {
	// HTTP server
	HTTPAddr     string        `yaml:"httpAddr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`

	// Liveness watchdog
	WatchdogPeriod time.Duration `yaml:"watchdogPeriod"`
	OfflineAfter   time.Duration `yaml:"offlineAfter"`

	// Bounded buffers
	HistoryCapacity  int `yaml:"historyCapacity"`
	WindowCapacity   int `yaml:"windowCapacity"`
	SubscriberBuffer int `yaml:"subscriberBuffer"`
	IngestQueueSize  int `yaml:"ingestQueueSize"`

	// Broker ingress (disabled when NATSURL is empty)
	NATSURL           string        `yaml:"natsUrl"`
	NATSSubject       string        `yaml:"natsSubject"`
	NATSReconnectWait time.Duration `yaml:"natsReconnectWait"`

	// Read-side auth (disabled when AuthSecret is empty)
	AuthSecret string `yaml:"authSecret"`

	// Observability
	LogLevel string `yaml:"logLevel"`
	AuditDir string `yaml:"auditDir"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:     ":8000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		// Devices go offline after 30s of silence, checked every 10s.
		WatchdogPeriod: 10 * time.Second,
		OfflineAfter:   30 * time.Second,

		HistoryCapacity:  100,
		WindowCapacity:   10,
		SubscriberBuffer: 100,
		IngestQueueSize:  1024,

		NATSSubject:       "telemetry.>",
		NATSReconnectWait: 2 * time.Second,

		LogLevel: "info",
		AuditDir: "logs",
	}
}

// Validate checks the merged configuration for values the pipeline cannot
// operate with.
func Validate(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("httpAddr must not be empty")
	}
	if cfg.WatchdogPeriod <= 0 {
		return fmt.Errorf("watchdogPeriod must be positive, got %v", cfg.WatchdogPeriod)
	}
	if cfg.OfflineAfter <= cfg.WatchdogPeriod {
		return fmt.Errorf("offlineAfter (%v) must exceed watchdogPeriod (%v)", cfg.OfflineAfter, cfg.WatchdogPeriod)
	}
	if cfg.HistoryCapacity <= 0 {
		return fmt.Errorf("historyCapacity must be positive, got %d", cfg.HistoryCapacity)
	}
	if cfg.WindowCapacity <= 0 {
		return fmt.Errorf("windowCapacity must be positive, got %d", cfg.WindowCapacity)
	}
	if cfg.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriberBuffer must be positive, got %d", cfg.SubscriberBuffer)
	}
	if cfg.IngestQueueSize <= 0 {
		return fmt.Errorf("ingestQueueSize must be positive, got %d", cfg.IngestQueueSize)
	}
	if cfg.NATSURL != "" && cfg.NATSSubject == "" {
		return fmt.Errorf("natsSubject must not be empty when natsUrl is set")
	}
	return nil
}
