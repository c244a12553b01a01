package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPortalMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPortalMetrics(reg)

	m.ObserveUpstream("appointments.list", "ok", 0.2)
	m.ObserveUpstream("appointments.list", "timeout", 10)
	m.ObserveFallback("directory")
	m.ObserveChatPoll(true)
	m.ObserveChatPoll(false)
	m.ObserveChatPoll(false)
	m.StreamOpened()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamTotal.WithLabelValues("appointments.list", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackTotal.WithLabelValues("directory")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatPollTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatStreams))

	m.StreamClosed()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.chatStreams))
}

func TestPortalMetricsNilSafe(t *testing.T) {
	var m *PortalMetrics
	m.ObserveUpstream("op", "ok", 0.1)
	m.ObserveFallback("chat")
	m.ObserveChatPoll(true)
	m.StreamOpened()
	m.StreamClosed()
}
