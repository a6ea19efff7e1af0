package api

import (
	"errors"
	"net/http"

	"github.com/fleet-monitor/fmc/internal/ingest"
	"github.com/fleet-monitor/fmc/internal/store"
)

// WriteDomainError maps a domain error onto the HTTP status and error code
// vocabulary of the API.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrMissingDeviceID):
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "device_id is required", nil)
	case errors.Is(err, ingest.ErrBusy):
		WriteError(w, http.StatusServiceUnavailable, "BUSY", "Ingest queue full, retry with backoff", nil)
	case errors.Is(err, ingest.ErrShuttingDown):
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Service shutting down", nil)
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Device not found", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error",
			map[string]any{"original": err.Error()})
	}
}
