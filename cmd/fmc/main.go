// Package main implements the Fleet Monitor Container entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/api"
	"github.com/fleet-monitor/fmc/internal/audit"
	"github.com/fleet-monitor/fmc/internal/auth"
	"github.com/fleet-monitor/fmc/internal/bus"
	"github.com/fleet-monitor/fmc/internal/config"
	"github.com/fleet-monitor/fmc/internal/inference"
	"github.com/fleet-monitor/fmc/internal/ingest"
	"github.com/fleet-monitor/fmc/internal/ingress"
	"github.com/fleet-monitor/fmc/internal/metrics"
	"github.com/fleet-monitor/fmc/internal/store"
	"github.com/fleet-monitor/fmc/internal/watchdog"
)

const Version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	log.Info().Str("version", Version).Msg("starting fleet monitor container")

	auditLogger, err := audit.NewLogger(cfg.AuditDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit logger")
	}

	st := store.New(cfg.HistoryCapacity)
	engine := inference.NewEngine(cfg.WindowCapacity)
	hub := bus.NewHub(st.SnapshotDevices, cfg.SubscriberBuffer, log)

	coordinator := ingest.NewCoordinator(st, engine, hub, cfg.IngestQueueSize, log)
	coordinator.SetAuditLogger(auditLogger)
	coordinator.Start()

	wd := watchdog.New(st, hub, cfg.WatchdogPeriod, cfg.OfflineAfter, log)
	wd.SetStatusLogger(auditLogger)
	wd.Start()

	metrics.RegisterGauges(st.Count, hub.SubscriberCount)

	var listener *ingress.Listener
	if cfg.NATSURL != "" {
		listener = ingress.NewListener(coordinator, ingress.Options{
			URL:           cfg.NATSURL,
			Subject:       cfg.NATSSubject,
			ReconnectWait: cfg.NATSReconnectWait,
		}, log)
		if err := listener.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start broker listener")
		}
	}

	var server *api.Server
	if cfg.AuthSecret != "" {
		server = api.NewServerWithAuth(coordinator, st, engine, hub,
			auth.NewMiddleware(cfg.AuthSecret), log,
			cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
		log.Info().Msg("read surface authentication enabled")
	} else {
		server = api.NewServer(coordinator, st, engine, hub, log,
			cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			serverErr <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop order: sources first, then processing, then outputs.
	if listener != nil {
		listener.Stop()
		log.Info().Msg("broker listener stopped")
	}

	if err := server.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("error stopping http server")
	}

	wd.Stop()
	coordinator.Stop()
	hub.Stop()

	if err := auditLogger.Close(); err != nil {
		log.Error().Err(err).Msg("error closing audit logger")
	}

	log.Info().Msg("shutdown complete")
}

// newLogger builds the process logger from the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
