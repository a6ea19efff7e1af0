package inference

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// State is the inferred operational state of a machine.
type State string

const (
	StateRunning State = "RUNNING"
	StateIdle    State = "IDLE"
	StateFault   State = "FAULT"
	StateUnknown State = "UNKNOWN"
)

// Thresholds used by the classification rules.
const (
	temperatureMax    = 80.0
	temperatureMin    = 0.0
	vibrationRunning  = 50.0
	vibrationIdle     = 5.0
	currentRunning    = 1.0
	currentIdle       = 0.1
	varianceThreshold = 5.0

	faultCutoff   = 0.7
	runningCutoff = 0.6
	idleCutoff    = 0.3

	// History-dependent rules need more than this many samples.
	minHistorySamples = 3
)

// KeyMetrics summarizes one tracked telemetry key over the rolling window.
type KeyMetrics struct {
	Current float64 `json:"current"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Trend   string  `json:"trend"`
}

// Record is the result of one classification. Records are replaced wholesale
// on every classification, never merged.
type Record struct {
	State      State                 `json:"state"`
	Confidence float64               `json:"confidence"`
	Timestamp  time.Time             `json:"timestamp"`
	Reasons    []string              `json:"reasons"`
	Metrics    map[string]KeyMetrics `json:"metrics"`
}

// metricKeys are the tracked keys reported in Record.Metrics.
var metricKeys = []string{"temperature", "vibration", "current", "battery"}

// recognizedKeys are the keys the rules read; a non-numeric value under one
// of these is an input-contract violation.
var recognizedKeys = map[string]struct{}{
	"temperature": {},
	"vibration":   {},
	"current":     {},
	"battery":     {},
	"rssi":        {},
	"sensor_data": {},
	"distance":    {},
}

// Engine maintains rolling telemetry windows and the latest Record per
// device.
type Engine struct {
	mu         sync.RWMutex
	windowSize int
	windows    map[string]map[string][]float64
	records    map[string]Record
}

// NewEngine creates an engine with the given per-key window capacity.
func NewEngine(windowSize int) *Engine {
	return &Engine{
		windowSize: windowSize,
		windows:    make(map[string]map[string][]float64),
		records:    make(map[string]Record),
	}
}

// Classify absorbs the current telemetry into the device's rolling windows
// and derives a new state record. A non-numeric value for a recognized key
// returns an error and leaves the device's previous record in place; other
// keys' windows are still updated.
func (e *Engine) Classify(deviceID string, current map[string]any, now time.Time) (Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	window, exists := e.windows[deviceID]
	if !exists {
		window = make(map[string][]float64)
		e.windows[deviceID] = window
	}

	// Buffer update happens before classification.
	numeric := make(map[string]float64, len(current))
	var violation error
	for key, value := range current {
		f, ok := toFloat(value)
		if !ok {
			if _, recognized := recognizedKeys[key]; recognized && violation == nil {
				violation = fmt.Errorf("non-numeric value for key %q: %T", key, value)
			}
			continue
		}
		numeric[key] = f

		samples := append(window[key], f)
		if len(samples) > e.windowSize {
			samples = samples[1:]
		}
		window[key] = samples
	}
	if violation != nil {
		return Record{}, violation
	}

	record := e.infer(numeric, window, now)
	e.records[deviceID] = record

	return record, nil
}

// Record returns the latest classification for a device.
func (e *Engine) Record(deviceID string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	record, exists := e.records[deviceID]
	return record, exists
}

// AllRecords returns the latest classification for every classified device.
func (e *Engine) AllRecords() map[string]Record {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]Record, len(e.records))
	for deviceID, record := range e.records {
		out[deviceID] = record
	}
	return out
}

// infer applies the rules in priority order: fault conditions first, then
// activity level.
func (e *Engine) infer(current map[string]float64, window map[string][]float64, now time.Time) Record {
	var (
		state      State
		confidence float64
		reasons    []string
	)

	faultScore, faultReasons := checkFaultConditions(current, window)
	if faultScore > faultCutoff {
		state = StateFault
		confidence = faultScore
		reasons = faultReasons
	} else {
		activityScore, activityReasons := checkActivityLevel(current, window)
		switch {
		case activityScore > runningCutoff:
			state = StateRunning
			confidence = activityScore
			reasons = activityReasons
		case activityScore < idleCutoff:
			state = StateIdle
			confidence = 1.0 - activityScore
			reasons = activityReasons
		default:
			state = StateUnknown
			confidence = 0.5
			reasons = []string{"Insufficient data for confident state inference"}
		}
	}

	return Record{
		State:      state,
		Confidence: round1(confidence * 100),
		Timestamp:  now,
		Reasons:    reasons,
		Metrics:    calculateMetrics(current, window),
	}
}

// checkFaultConditions scores fault indicators additively, capped at 1.0.
func checkFaultConditions(current map[string]float64, window map[string][]float64) (float64, []string) {
	var reasons []string
	score := 0.0

	if temp, ok := current["temperature"]; ok {
		if temp > temperatureMax {
			reasons = append(reasons, fmt.Sprintf("Temperature critical: %.1f°C", temp))
			score += 0.4
		} else if temp < temperatureMin {
			reasons = append(reasons, fmt.Sprintf("Temperature too low: %.1f°C", temp))
			score += 0.3
		}
	}

	if vibration, ok := current["vibration"]; ok {
		if history := window["vibration"]; len(history) > minHistorySamples {
			if vibration > mean(history)*2 {
				reasons = append(reasons, fmt.Sprintf("Abnormal vibration: %.1f", vibration))
				score += 0.4
			}
		}
	}

	if amps, ok := current["current"]; ok {
		if history := window["current"]; len(history) > minHistorySamples {
			avg := mean(history)
			if math.Abs(amps-avg) > avg*1.5 {
				reasons = append(reasons, fmt.Sprintf("Abnormal current: %.2fA", amps))
				score += 0.3
			}
		}
	}

	if battery, ok := current["battery"]; ok && battery < 10 {
		reasons = append(reasons, fmt.Sprintf("Battery critical: %.0f%%", battery))
		score += 0.2
	}

	if rssi, ok := current["rssi"]; ok && rssi < -90 {
		reasons = append(reasons, fmt.Sprintf("Weak signal: %v dBm", rssi))
		score += 0.1
	}

	return math.Min(score, 1.0), reasons
}

// checkActivityLevel scores running-vs-idle signals and normalizes by the
// weight of the signals that were actually present.
func checkActivityLevel(current map[string]float64, window map[string][]float64) (float64, []string) {
	var reasons []string
	score := 0.0
	maxScore := 0.0

	if amps, ok := current["current"]; ok {
		if amps > currentRunning {
			reasons = append(reasons, fmt.Sprintf("High current draw: %.2fA", amps))
			score += 0.4
			maxScore += 0.4
		} else if amps < currentIdle {
			reasons = append(reasons, fmt.Sprintf("Low current draw: %.2fA", amps))
			maxScore += 0.4
		} else {
			maxScore += 0.4
		}
	}

	if vibration, ok := current["vibration"]; ok {
		if vibration > vibrationRunning {
			reasons = append(reasons, fmt.Sprintf("High vibration: %.1f", vibration))
			score += 0.3
			maxScore += 0.3
		} else if vibration < vibrationIdle {
			reasons = append(reasons, fmt.Sprintf("Low vibration: %.1f", vibration))
			maxScore += 0.3
		} else {
			score += 0.15
			maxScore += 0.3
		}
	}

	// Running machines show more variance in their generic sensor channel.
	for _, key := range []string{"sensor_data", "distance"} {
		history := window[key]
		if len(history) <= minHistorySamples {
			continue
		}
		if v := variance(history); v > varianceThreshold {
			reasons = append(reasons, fmt.Sprintf("High data variance: %.1f", v))
			score += 0.3
		}
		maxScore += 0.3
		break
	}

	if maxScore > 0 {
		score /= maxScore
	}

	if len(reasons) == 0 {
		reasons = []string{"Nominal operation"}
	}

	return score, reasons
}

// calculateMetrics summarizes the tracked keys with at least two window
// samples.
func calculateMetrics(current map[string]float64, window map[string][]float64) map[string]KeyMetrics {
	metrics := make(map[string]KeyMetrics)

	for _, key := range metricKeys {
		history := window[key]
		if len(history) < 2 {
			continue
		}

		trend := "stable"
		if history[len(history)-1] > history[0] {
			trend = "up"
		} else if history[len(history)-1] < history[0] {
			trend = "down"
		}

		metrics[key] = KeyMetrics{
			Current: current[key],
			Avg:     round2(mean(history)),
			Min:     round2(minOf(history)),
			Max:     round2(maxOf(history)),
			Trend:   trend,
		}
	}

	return metrics
}

// toFloat coerces the numeric variants a JSON or broker payload can carry.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// variance is the sample variance (n-1 denominator).
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return sum / float64(len(values)-1)
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
