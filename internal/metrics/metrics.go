package metrics

import "github.com/prometheus/client_golang/prometheus"

// PortalMetrics exposes counters/histograms for upstream calls and degraded paths.
type PortalMetrics struct {
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	fallbackTotal   *prometheus.CounterVec
	chatPollTotal   *prometheus.CounterVec
	chatStreams     prometheus.Gauge
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healsync",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total calls to the HealSync REST API",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "healsync",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to the HealSync REST API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healsync",
			Subsystem: "portal",
			Name:      "fallback_total",
			Help:      "Responses served from fallback data because the API failed",
		}, []string{"feature"}),
		chatPollTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "healsync",
			Subsystem: "chat",
			Name:      "polls_total",
			Help:      "Chat message polls by result",
		}, []string{"result"}),
		chatStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "healsync",
			Subsystem: "chat",
			Name:      "open_streams",
			Help:      "Chat event streams currently open",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.upstreamTotal, m.upstreamLatency, m.fallbackTotal, m.chatPollTotal, m.chatStreams)
	return m
}

func (m *PortalMetrics) ObserveUpstream(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(operation, outcome).Inc()
	m.upstreamLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *PortalMetrics) ObserveFallback(feature string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(feature).Inc()
}

func (m *PortalMetrics) ObserveChatPoll(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.chatPollTotal.WithLabelValues(result).Inc()
}

func (m *PortalMetrics) StreamOpened() {
	if m == nil {
		return
	}
	m.chatStreams.Inc()
}

func (m *PortalMetrics) StreamClosed() {
	if m == nil {
		return
	}
	m.chatStreams.Dec()
}

// UpstreamCounter returns the call counter for one operation/outcome pair.
func (m *PortalMetrics) UpstreamCounter(operation, outcome string) prometheus.Counter {
	return m.upstreamTotal.WithLabelValues(operation, outcome)
}

// FallbackCounter returns the fallback counter for a feature.
func (m *PortalMetrics) FallbackCounter(feature string) prometheus.Counter {
	return m.fallbackTotal.WithLabelValues(feature)
}

// ChatPollCounter returns the poll counter for successful or failed polls.
func (m *PortalMetrics) ChatPollCounter(ok bool) prometheus.Counter {
	if ok {
		return m.chatPollTotal.WithLabelValues("ok")
	}
	return m.chatPollTotal.WithLabelValues("error")
}
