package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Status is the liveness state of a device.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// ErrNotFound indicates the requested device is not registered.
var ErrNotFound = errors.New("device not found")

// Device holds the metadata discovered for a single device.
type Device struct {
	DeviceID      string    `json:"device_id"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	TelemetryKeys []string  `json:"telemetry_keys"`
	Status        Status    `json:"status"`
}

// Sample is one timestamped telemetry value.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
}

// Store maintains the device registry and bounded telemetry series.
type Store struct {
	mu       sync.RWMutex
	capacity int

	devices map[string]*Device
	// deviceID -> key -> samples, oldest first, len <= capacity
	series map[string]map[string][]Sample
	// deviceID -> key set, mirrors Device.TelemetryKeys for O(1) discovery
	known map[string]map[string]struct{}
}

// New creates a store whose series hold at most capacity samples per key.
func New(capacity int) *Store {
	return &Store{
		capacity: capacity,
		devices:  make(map[string]*Device),
		series:   make(map[string]map[string][]Sample),
		known:    make(map[string]map[string]struct{}),
	}
}

// RegisterIfAbsent creates a device record on first contact. It reports
// whether a new device was created; repeat calls leave first_seen untouched.
func (s *Store) RegisterIfAbsent(deviceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.devices[deviceID]; exists {
		return false
	}

	s.devices[deviceID] = &Device{
		DeviceID:      deviceID,
		FirstSeen:     now,
		LastSeen:      now,
		TelemetryKeys: []string{},
		Status:        StatusOnline,
	}
	s.series[deviceID] = make(map[string][]Sample)
	s.known[deviceID] = make(map[string]struct{})

	return true
}

// ApplyTelemetry appends one sample per key, discovers new keys in map
// iteration order of the caller's batch, and refreshes last_seen/status.
// The device must already be registered.
func (s *Store) ApplyTelemetry(deviceID string, telemetry map[string]any, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, exists := s.devices[deviceID]
	if !exists {
		return ErrNotFound
	}

	for key, value := range telemetry {
		samples := append(s.series[deviceID][key], Sample{Timestamp: now, Value: value})
		if len(samples) > s.capacity {
			samples = samples[1:]
		}
		s.series[deviceID][key] = samples

		if _, seen := s.known[deviceID][key]; !seen {
			s.known[deviceID][key] = struct{}{}
			device.TelemetryKeys = append(device.TelemetryKeys, key)
		}
	}

	device.LastSeen = now
	device.Status = StatusOnline

	return nil
}

// MarkOffline demotes a device to offline if it is still online and its
// last_seen is before the cutoff. It reports whether the transition happened,
// so a caller can publish exactly one status event per demotion.
func (s *Store) MarkOffline(deviceID string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, exists := s.devices[deviceID]
	if !exists {
		return false
	}
	if device.Status != StatusOnline || !device.LastSeen.Before(cutoff) {
		return false
	}

	device.Status = StatusOffline
	return true
}

// Device returns a copy of one device record.
func (s *Store) Device(deviceID string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, exists := s.devices[deviceID]
	if !exists {
		return Device{}, ErrNotFound
	}
	return copyDevice(device), nil
}

// SnapshotDevices returns copies of all device records, ordered by device ID
// for stable output.
func (s *Store) SnapshotDevices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]Device, 0, len(s.devices))
	for _, device := range s.devices {
		devices = append(devices, copyDevice(device))
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].DeviceID < devices[j].DeviceID
	})
	return devices
}

// Latest returns the most recent sample per key for a device. Unknown
// devices yield an empty map.
func (s *Store) Latest(deviceID string) map[string]Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]Sample)
	for key, samples := range s.series[deviceID] {
		if len(samples) > 0 {
			latest[key] = samples[len(samples)-1]
		}
	}
	return latest
}

// History returns the ordered samples for one (device, key) series. Unknown
// devices or keys yield an empty slice.
func (s *Store) History(deviceID, key string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.series[deviceID][key]
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out
}

// Count returns the number of registered devices.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

func copyDevice(d *Device) Device {
	out := *d
	out.TelemetryKeys = make([]string, len(d.TelemetryKeys))
	copy(out.TelemetryKeys, d.TelemetryKeys)
	return out
}
