// internal/infra/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "water_billing"

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	notificationsSent  *prometheus.CounterVec
	statusTransitions  *prometheus.CounterVec
	batchesDispatched  prometheus.Counter
	licencesFlagged    *prometheus.CounterVec
	reconciliationRuns *prometheus.CounterVec
}

// New registers every collector. Go and process collectors are optional so
// tests can scrape a small, predictable output.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: namespace}),
		)
	}

	m := &Metrics{
		registry: registry,
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Notifications dispatched, by message type and resulting status.",
		}, []string{"message_type", "status"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "status_transitions_total",
			Help:      "Notification status changes recorded by reconciliation.",
		}, []string{"message_type", "status"}),
		batchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "batches_total",
			Help:      "Batches sent to the notification provider.",
		}),
		licencesFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supplementary",
			Name:      "licences_flagged_total",
			Help:      "Licences processed by flag determination, by outcome.",
		}, []string{"outcome"}),
		reconciliationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "reconciliation_runs_total",
			Help:      "Status reconciliation runs, by result.",
		}, []string{"result"}),
	}
	registry.MustRegister(
		m.notificationsSent,
		m.statusTransitions,
		m.batchesDispatched,
		m.licencesFlagged,
		m.reconciliationRuns,
	)
	return m
}

func (m *Metrics) NotificationSent(messageType, status string) {
	m.notificationsSent.WithLabelValues(messageType, status).Inc()
}

func (m *Metrics) StatusTransition(messageType, status string) {
	m.statusTransitions.WithLabelValues(messageType, status).Inc()
}

func (m *Metrics) BatchDispatched() {
	m.batchesDispatched.Inc()
}

// LicenceFlagged records a flag determination outcome: "flagged",
// "unchanged" or "failed".
func (m *Metrics) LicenceFlagged(outcome string) {
	m.licencesFlagged.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReconciliationRun(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconciliationRuns.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
