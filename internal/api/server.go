package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fleet-monitor/fmc/internal/auth"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	coordinator    IngestPort
	devices        DeviceReadPort
	states         StateReadPort
	hub            StreamPort
	authMiddleware *auth.Middleware
	upgrader       websocket.Upgrader
	log            zerolog.Logger
	startTime      time.Time
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// NewServer creates a new API server.
func NewServer(coordinator IngestPort, devices DeviceReadPort, states StateReadPort, hub StreamPort, log zerolog.Logger, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		coordinator: coordinator,
		devices:     devices,
		states:      states,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:          log.With().Str("component", "api").Logger(),
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// NewServerWithAuth creates a new API server with authentication middleware
// on the read surface.
func NewServerWithAuth(coordinator IngestPort, devices DeviceReadPort, states StateReadPort, hub StreamPort, authMiddleware *auth.Middleware, log zerolog.Logger, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	s := NewServer(coordinator, devices, states, hub, log, readTimeout, writeTimeout, idleTimeout)
	s.authMiddleware = authMiddleware
	return s
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start(addr string) error {
	router := mux.NewRouter()
	s.RegisterRoutes(router)

	// Hijacked websocket connections are exempt from these deadlines.
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("http server listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
