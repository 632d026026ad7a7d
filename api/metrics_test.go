package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector_ConnectFailureSpike(t *testing.T) {
	var alerts []AlertEvent
	m := newMetricsCollector(func(ev AlertEvent) { alerts = append(alerts, ev) })

	for i := 0; i < defaultConnectFailureThreshold-1; i++ {
		m.recordEvent(AuditKeyConnected, auditFailure)
	}
	assert.Empty(t, alerts, "no alert below threshold")

	m.recordEvent(AuditKeyConnected, auditFailure)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertConnectFailureSpike, alerts[0].Type)
	assert.Equal(t, defaultConnectFailureThreshold, alerts[0].Count)

	// Further failures within the window do not re-fire.
	m.recordEvent(AuditKeyConnected, auditFailure)
	m.recordEvent(AuditKeyConnected, auditFailure)
	assert.Len(t, alerts, 1)
}

func TestMetricsCollector_ErrorSpike(t *testing.T) {
	var alerts []AlertEvent
	m := newMetricsCollector(func(ev AlertEvent) { alerts = append(alerts, ev) })

	for i := 0; i < defaultErrorThreshold; i++ {
		m.recordEvent(AuditError, auditFailure)
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertErrorSpike, alerts[0].Type)
}

func TestMetricsCollector_SuccessesDoNotCount(t *testing.T) {
	var alerts []AlertEvent
	m := newMetricsCollector(func(ev AlertEvent) { alerts = append(alerts, ev) })

	for i := 0; i < defaultConnectFailureThreshold*2; i++ {
		m.recordEvent(AuditKeyConnected, auditSuccess)
		m.recordEvent(AuditGenerationRequested, auditSuccess)
	}
	assert.Empty(t, alerts)
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	var m *metricsCollector
	assert.NotPanics(t, func() { m.recordEvent(AuditError, auditFailure) })
}
