// Package metrics exposes Prometheus metrics for call routing and
// reconciliation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the instrument set. Event counters are incremented on the
// hot path; uptime is computed at scrape time.
type Metrics struct {
	callsRouted      *prometheus.CounterVec
	callStatusEvents *prometheus.CounterVec
	reconciliations  *prometheus.CounterVec
	providerRequests *prometheus.CounterVec

	startTime  time.Time
	uptimeDesc *prometheus.Desc
}

// New creates the instrument set and registers it on the given registry.
func New(reg prometheus.Registerer, startTime time.Time) *Metrics {
	m := &Metrics{
		callsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_calls_routed_total",
			Help: "Inbound call webhooks handled, by routing outcome",
		}, []string{"outcome"}),
		callStatusEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_call_status_events_total",
			Help: "Call lifecycle status callbacks received, by status",
		}, []string{"status"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_reconciliations_total",
			Help: "Number-to-agent reconciliation requests, by outcome",
		}, []string{"outcome"}),
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicebridge_provider_requests_total",
			Help: "Outbound telephony-provider API calls, by method and outcome",
		}, []string{"method", "outcome"}),

		startTime: startTime,
		uptimeDesc: prometheus.NewDesc(
			"voicebridge_uptime_seconds",
			"Seconds since the voicebridge process started",
			nil, nil,
		),
	}

	reg.MustRegister(m.callsRouted, m.callStatusEvents, m.reconciliations, m.providerRequests, m)
	return m
}

// CallRouted records one handled inbound-call webhook.
func (m *Metrics) CallRouted(outcome string) {
	m.callsRouted.WithLabelValues(outcome).Inc()
}

// CallStatusEvent records one call-lifecycle status callback.
func (m *Metrics) CallStatusEvent(status string) {
	m.callStatusEvents.WithLabelValues(status).Inc()
}

// Reconciliation records one auto-assign request.
func (m *Metrics) Reconciliation(outcome string) {
	m.reconciliations.WithLabelValues(outcome).Inc()
}

// ProviderRequest records one outbound provider API call. It matches the
// provider client's Observe hook signature.
func (m *Metrics) ProviderRequest(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerRequests.WithLabelValues(method, outcome).Inc()
}

// Describe implements prometheus.Collector for the scrape-time metrics.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.uptimeDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(
		m.uptimeDesc, prometheus.GaugeValue,
		time.Since(m.startTime).Seconds(),
	)
}
