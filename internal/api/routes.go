package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleet-monitor/fmc/internal/auth"
	"github.com/fleet-monitor/fmc/internal/ingest"
)

// RegisterRoutes registers all v1 endpoints on the router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// Ingest and health are never gated; device traffic and probes must
	// keep flowing regardless of reader credentials.
	apiV1.HandleFunc("/telemetry", s.handleIngestTelemetry).Methods(http.MethodPost)
	apiV1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	read := func(h http.HandlerFunc) http.HandlerFunc { return h }
	stream := read
	if s.authMiddleware != nil {
		read = func(h http.HandlerFunc) http.HandlerFunc {
			return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(h))
		}
		stream = func(h http.HandlerFunc) http.HandlerFunc {
			return s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeTelemetry)(h))
		}
	}

	apiV1.HandleFunc("/devices", read(s.handleListDevices)).Methods(http.MethodGet)
	apiV1.HandleFunc("/devices/{id}", read(s.handleGetDevice)).Methods(http.MethodGet)
	apiV1.HandleFunc("/devices/{id}/telemetry", read(s.handleLatestTelemetry)).Methods(http.MethodGet)
	apiV1.HandleFunc("/devices/{id}/keys", read(s.handleTelemetryKeys)).Methods(http.MethodGet)
	apiV1.HandleFunc("/devices/{id}/history/{key}", read(s.handleHistory)).Methods(http.MethodGet)
	apiV1.HandleFunc("/devices/{id}/state", read(s.handleDeviceState)).Methods(http.MethodGet)
	apiV1.HandleFunc("/states", read(s.handleAllStates)).Methods(http.MethodGet)

	router.HandleFunc("/ws/live", stream(s.handleLiveStream)).Methods(http.MethodGet)
}

// handleIngestTelemetry handles POST /api/v1/telemetry
func (s *Server) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID  string         `json:"device_id"`
		Telemetry map[string]any `json:"telemetry"`
		Timestamp string         `json:"timestamp"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object", nil)
		return
	}

	err := s.coordinator.Ingest(r.Context(), ingest.Request{
		DeviceID:  req.DeviceID,
		Telemetry: req.Telemetry,
		Timestamp: req.Timestamp,
		Source:    "http",
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteAccepted(w, map[string]string{"device_id": req.DeviceID, "status": "accepted"})
}

// handleListDevices handles GET /api/v1/devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.devices.SnapshotDevices())
}

// handleGetDevice handles GET /api/v1/devices/{id}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.devices.Device(mux.Vars(r)["id"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, device)
}

// handleLatestTelemetry handles GET /api/v1/devices/{id}/telemetry
func (s *Server) handleLatestTelemetry(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if _, err := s.devices.Device(deviceID); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, s.devices.Latest(deviceID))
}

// handleTelemetryKeys handles GET /api/v1/devices/{id}/keys
func (s *Server) handleTelemetryKeys(w http.ResponseWriter, r *http.Request) {
	device, err := s.devices.Device(mux.Vars(r)["id"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteSuccess(w, map[string]any{"device_id": device.DeviceID, "keys": device.TelemetryKeys})
}

// handleHistory handles GET /api/v1/devices/{id}/history/{key}
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	deviceID, key := vars["id"], vars["key"]

	if _, err := s.devices.Device(deviceID); err != nil {
		WriteDomainError(w, err)
		return
	}

	history := s.devices.History(deviceID, key)
	WriteSuccess(w, map[string]any{"device_id": deviceID, "key": key, "history": history})
}

// handleDeviceState handles GET /api/v1/devices/{id}/state
func (s *Server) handleDeviceState(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if _, err := s.devices.Device(deviceID); err != nil {
		WriteDomainError(w, err)
		return
	}

	record, ok := s.states.Record(deviceID)
	if !ok {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "No state inferred for device yet", nil)
		return
	}
	WriteSuccess(w, record)
}

// handleAllStates handles GET /api/v1/states
func (s *Server) handleAllStates(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, s.states.AllRecords())
}

// handleLiveStream handles GET /ws/live. The subscriber's writer goroutine
// is owned by the hub; this handler only pumps the read side to observe
// disconnects and answer control frames.
func (s *Server) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := s.hub.Subscribe(conn)
	defer s.hub.Unsubscribe(sub.ID)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleHealth handles GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	subsystems := map[string]bool{
		"ingest": s.coordinator != nil,
		"store":  s.devices != nil,
		"states": s.states != nil,
		"stream": s.hub != nil,
	}

	status := "ok"
	for _, up := range subsystems {
		if !up {
			status = "degraded"
		}
	}

	health := map[string]any{
		"status":      status,
		"uptimeSec":   uptime,
		"version":     "1.0.0",
		"subscribers": s.hub.SubscriberCount(),
		"subsystems":  subsystems,
	}

	if status != "ok" {
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
		return
	}
	WriteSuccess(w, health)
}
