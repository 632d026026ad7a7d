package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertConnectFailureSpike AlertType = "connect_failure_spike"
	AlertErrorSpike          AlertType = "error_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// metricsCollector tracks sliding-window counters over audit events. A
// burst of failed connects usually means someone is enumerating stolen
// keys through us; a burst of errors means something upstream is broken.
type metricsCollector struct {
	mu sync.Mutex

	connectFailures  []time.Time
	connectWindow    time.Duration
	connectThreshold int

	errorEvents    []time.Time
	errorWindow    time.Duration
	errorThreshold int

	alertFn AlertFunc
}

const (
	defaultConnectFailureWindow    = 1 * time.Minute
	defaultConnectFailureThreshold = 20
	defaultErrorWindow             = 1 * time.Minute
	defaultErrorThreshold          = 50
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		connectWindow:    defaultConnectFailureWindow,
		connectThreshold: defaultConnectFailureThreshold,
		errorWindow:      defaultErrorWindow,
		errorThreshold:   defaultErrorThreshold,
		alertFn:          alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *metricsCollector) recordEvent(event AuditEvent, status string) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch {
	case event == AuditKeyConnected && status == auditFailure:
		m.record(&m.connectFailures, m.connectWindow, m.connectThreshold, AlertConnectFailureSpike)
	case event == AuditError:
		m.record(&m.errorEvents, m.errorWindow, m.errorThreshold, AlertErrorSpike)
	}
}

func (m *metricsCollector) record(hits *[]time.Time, window time.Duration, threshold int, alert AlertType) {
	m.mu.Lock()
	now := time.Now()
	*hits = append(*hits, now)

	cutoff := now.Add(-window)
	start := 0
	for start < len(*hits) && (*hits)[start].Before(cutoff) {
		start++
	}
	*hits = (*hits)[start:]

	count := len(*hits)
	fire := count == threshold
	m.mu.Unlock()

	// Fire exactly once per crossing, outside the lock.
	if fire {
		m.alertFn(AlertEvent{
			Type:      alert,
			Count:     count,
			Threshold: threshold,
			Timestamp: now,
		})
	}
}
