package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	DeviceID  string    `json:"deviceId"`
	Action    string    `json:"action"`
	Source    string    `json:"source,omitempty"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latencyMs,omitempty"`
}

// Outcome codes recorded for audit entries.
const (
	OutcomeSuccess       = "SUCCESS"
	OutcomeClassifySkip  = "CLASSIFY_SKIPPED"
	OutcomeOffline       = "OFFLINE"
	OutcomeQueueRejected = "QUEUE_REJECTED"
)

// Logger writes audit entries to an append-only JSONL file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
}

// NewLogger creates an audit logger writing to <logDir>/audit.jsonl.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filePath := filepath.Join(logDir, "audit.jsonl")

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
	}, nil
}

// LogIngest records the outcome of one ingest operation.
func (l *Logger) LogIngest(deviceID, source, outcome string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Action:    "ingest",
		Source:    source,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
	})
}

// LogStatusChange records a watchdog-driven status transition.
func (l *Logger) LogStatusChange(deviceID, outcome string) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Action:    "statusChange",
		Outcome:   outcome,
	})
}

// writeEntry appends one JSON line to the audit file.
func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}

	if _, err := l.file.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
		return
	}

	if err := l.file.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync audit log: %v\n", err)
	}
}

// Close closes the audit logger and its file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// GetFilePath returns the path to the audit log file.
func (l *Logger) GetFilePath() string {
	return l.filePath
}
