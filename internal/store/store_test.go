package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIfAbsent(t *testing.T) {
	s := New(100)
	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, s.RegisterIfAbsent("machine-1", first))
	assert.False(t, s.RegisterIfAbsent("machine-1", first.Add(time.Hour)))

	device, err := s.Device("machine-1")
	require.NoError(t, err)
	assert.Equal(t, first, device.FirstSeen)
	assert.Equal(t, StatusOnline, device.Status)
	assert.Empty(t, device.TelemetryKeys)
}

func TestApplyTelemetryUnknownDevice(t *testing.T) {
	s := New(100)
	err := s.ApplyTelemetry("ghost", map[string]any{"temperature": 20.0}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTelemetryKeyDiscoveryOrder(t *testing.T) {
	s := New(100)
	now := time.Now().UTC()
	s.RegisterIfAbsent("machine-1", now)

	// Single-key batches so discovery order is deterministic.
	for i, key := range []string{"temperature", "vibration", "current"} {
		err := s.ApplyTelemetry("machine-1", map[string]any{key: float64(i)}, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
	// Repeats never re-discover.
	require.NoError(t, s.ApplyTelemetry("machine-1", map[string]any{"temperature": 9.0}, now.Add(time.Minute)))

	device, err := s.Device("machine-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature", "vibration", "current"}, device.TelemetryKeys)
}

func TestHistoryCapacityEviction(t *testing.T) {
	s := New(3)
	now := time.Now().UTC()
	s.RegisterIfAbsent("machine-1", now)

	for i := 1; i <= 5; i++ {
		err := s.ApplyTelemetry("machine-1", map[string]any{"temperature": float64(i)}, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	history := s.History("machine-1", "temperature")
	require.Len(t, history, 3)
	assert.Equal(t, 3.0, history[0].Value)
	assert.Equal(t, 5.0, history[2].Value)
	assert.True(t, history[0].Timestamp.Before(history[2].Timestamp))
}

func TestLatestReflectsLastSample(t *testing.T) {
	s := New(100)
	now := time.Now().UTC()
	s.RegisterIfAbsent("machine-1", now)

	require.NoError(t, s.ApplyTelemetry("machine-1", map[string]any{"temperature": 20.0, "vibration": 3.0}, now))
	require.NoError(t, s.ApplyTelemetry("machine-1", map[string]any{"temperature": 25.0}, now.Add(time.Second)))

	latest := s.Latest("machine-1")
	require.Len(t, latest, 2)
	assert.Equal(t, 25.0, latest["temperature"].Value)
	assert.Equal(t, 3.0, latest["vibration"].Value)

	assert.Empty(t, s.Latest("ghost"))
}

func TestMarkOfflineTransitionsOnce(t *testing.T) {
	s := New(100)
	seen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.RegisterIfAbsent("machine-1", seen)

	cutoff := seen.Add(30 * time.Second)
	assert.True(t, s.MarkOffline("machine-1", cutoff))
	assert.False(t, s.MarkOffline("machine-1", cutoff), "second demotion must not report a transition")

	device, err := s.Device("machine-1")
	require.NoError(t, err)
	assert.Equal(t, StatusOffline, device.Status)

	// Telemetry revives the device and re-arms the demotion.
	later := cutoff.Add(time.Minute)
	require.NoError(t, s.ApplyTelemetry("machine-1", map[string]any{"temperature": 20.0}, later))
	device, _ = s.Device("machine-1")
	assert.Equal(t, StatusOnline, device.Status)
	assert.Equal(t, later, device.LastSeen)

	assert.True(t, s.MarkOffline("machine-1", later.Add(time.Hour)))
}

func TestMarkOfflineFreshDevice(t *testing.T) {
	s := New(100)
	seen := time.Now().UTC()
	s.RegisterIfAbsent("machine-1", seen)

	assert.False(t, s.MarkOffline("machine-1", seen.Add(-time.Second)))
	assert.False(t, s.MarkOffline("ghost", seen))
}

func TestSnapshotDevicesSortedAndDetached(t *testing.T) {
	s := New(100)
	now := time.Now().UTC()
	s.RegisterIfAbsent("machine-b", now)
	s.RegisterIfAbsent("machine-a", now)
	require.NoError(t, s.ApplyTelemetry("machine-a", map[string]any{"temperature": 1.0}, now))

	snapshot := s.SnapshotDevices()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "machine-a", snapshot[0].DeviceID)
	assert.Equal(t, "machine-b", snapshot[1].DeviceID)

	// Mutating the snapshot must not leak into the store.
	snapshot[0].TelemetryKeys[0] = "tampered"
	device, err := s.Device("machine-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"temperature"}, device.TelemetryKeys)
}

func TestCount(t *testing.T) {
	s := New(100)
	assert.Equal(t, 0, s.Count())
	s.RegisterIfAbsent("machine-1", time.Now())
	s.RegisterIfAbsent("machine-2", time.Now())
	assert.Equal(t, 2, s.Count())
}
