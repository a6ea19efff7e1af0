package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLogIngest(t *testing.T) {
	logger, err := NewLogger(t.TempDir())
	require.NoError(t, err)
	defer logger.Close()

	logger.LogIngest("machine-1", "http", OutcomeSuccess, 12*time.Millisecond)
	logger.LogIngest("machine-2", "nats", OutcomeClassifySkip, 0)

	entries := readEntries(t, logger.GetFilePath())
	require.Len(t, entries, 2)

	assert.Equal(t, "machine-1", entries[0].DeviceID)
	assert.Equal(t, "ingest", entries[0].Action)
	assert.Equal(t, "http", entries[0].Source)
	assert.Equal(t, OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, int64(12), entries[0].LatencyMs)

	assert.Equal(t, "nats", entries[1].Source)
	assert.Equal(t, OutcomeClassifySkip, entries[1].Outcome)
}

func TestLogStatusChange(t *testing.T) {
	logger, err := NewLogger(t.TempDir())
	require.NoError(t, err)
	defer logger.Close()

	logger.LogStatusChange("machine-1", OutcomeOffline)

	entries := readEntries(t, logger.GetFilePath())
	require.Len(t, entries, 1)
	assert.Equal(t, "statusChange", entries[0].Action)
	assert.Equal(t, OutcomeOffline, entries[0].Outcome)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestWriteAfterCloseIsSafe(t *testing.T) {
	logger, err := NewLogger(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	logger.LogIngest("machine-1", "http", OutcomeSuccess, 0)
	require.NoError(t, logger.Close())

	entries := readEntries(t, logger.GetFilePath())
	assert.Empty(t, entries)
}
