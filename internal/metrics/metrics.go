// Package metrics exposes Prometheus collectors for registration traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

const namespace = "fieldbutton"

type Metrics struct {
	registry *prometheus.Registry

	results         *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter
}

// New builds collectors on a private registry so several servers (tests)
// can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration requests by final outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_attempts_total",
			Help:      "Outbound Bitrix24 calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registration_attempt_duration_seconds",
			Help:      "Latency of outbound Bitrix24 calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"endpoint"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Incoming requests rejected by the global rate limit.",
		}),
	}

	reg.MustRegister(m.results, m.attempts, m.attemptDuration, m.rateLimited)
	return m
}

func (m *Metrics) ObserveAttempt(endpoint string, outcome domain.Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(endpoint, string(outcome)).Inc()
	m.attemptDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveResult(outcome domain.Outcome) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}


func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
