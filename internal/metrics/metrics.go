// Package metrics exposes Prometheus instrumentation for player switching.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edumarques81/stellar-playerswitch/internal/domain/switcher"
)

const namespace = "playerswitch"

// unknownService labels attempts for keys the registry rejected.
const unknownService = "unknown"

// SwitchMetrics holds the collectors for switch attempts.
type SwitchMetrics struct {
	registry  *prometheus.Registry
	attempts  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	steps     *prometheus.CounterVec
	confirmed prometheus.Gauge
}

// New registers the switch collectors, plus Go runtime and process
// collectors, on a private registry.
func New() *SwitchMetrics {
	reg := prometheus.NewRegistry()

	m := &SwitchMetrics{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "switch_attempts_total",
			Help:      "Player switch attempts by service and outcome.",
		}, []string{"service", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "switch_duration_seconds",
			Help:      "Duration of player switch attempts in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60},
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "switch_step_failures_total",
			Help:      "Commands of the switch sequence that failed, by step.",
		}, []string{"step"}),
		confirmed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_switch_confirmed",
			Help:      "1 if the last executed switch was confirmed by the status monitor.",
		}),
	}

	reg.MustRegister(
		m.attempts,
		m.duration,
		m.steps,
		m.confirmed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one finished switch attempt.
func (m *SwitchMetrics) Observe(_ context.Context, rec switcher.Record) {
	if m == nil {
		return
	}

	service := rec.Service
	if rec.Outcome == switcher.OutcomeInvalid {
		// Rejected keys come straight from clients; keep them out of label values.
		service = unknownService
	}
	m.attempts.WithLabelValues(service, string(rec.Outcome)).Inc()
	m.duration.WithLabelValues(string(rec.Outcome)).Observe(rec.Duration.Seconds())

	for _, step := range rec.Steps {
		if !step.OK() {
			m.steps.WithLabelValues(string(step.Step)).Inc()
		}
	}

	// Rejected attempts never touch the device.
	switch rec.Outcome {
	case switcher.OutcomeSuccess, switcher.OutcomeUnconfirmed:
		if rec.Confirmed {
			m.confirmed.Set(1)
		} else {
			m.confirmed.Set(0)
		}
	}
}

// Registry returns the underlying registry.
func (m *SwitchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SwitchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
