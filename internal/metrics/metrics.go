// Package metrics exposes Prometheus collectors for the agent loop.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhle/mail-agent/internal/agent"
)

const namespace = "mailagent"

// Metrics records loop measurements. It implements agent.Observer.
type Metrics struct {
	registry *prometheus.Registry

	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	decisions  *prometheus.HistogramVec
	toolCalls  *prometheus.CounterVec
	toolTime   *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Interactions processed, by outcome.",
			},
			[]string{"outcome"},
		),
		iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_iterations",
				Help:      "Decisions taken per interaction.",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
		decisions: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Latency of the decision source.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"outcome"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Mailbox tool calls, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		toolTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of mailbox tool calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.runs, m.iterations, m.decisions, m.toolCalls, m.toolTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterSessions exposes the number of live sessions via count.
func (m *Metrics) RegisterSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		},
		func() float64 { return float64(count()) },
	))
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDecision implements agent.Observer.
func (m *Metrics) ObserveDecision(d time.Duration, err error) {
	m.decisions.WithLabelValues(outcome(err)).Observe(d.Seconds())
}

// ObserveToolCall implements agent.Observer.
func (m *Metrics) ObserveToolCall(kind agent.ToolKind, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.toolCalls.WithLabelValues(kind.String(), result).Inc()
	m.toolTime.WithLabelValues(kind.String()).Observe(d.Seconds())
}

// ObserveRun implements agent.Observer.
func (m *Metrics) ObserveRun(iterations int, err error) {
	m.runs.WithLabelValues(outcome(err)).Inc()
	m.iterations.Observe(float64(iterations))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, agent.ErrIterationLimitExceeded):
		return "iteration_limit"
	case errors.Is(err, agent.ErrDecisionUnavailable):
		return "decision_unavailable"
	case errors.Is(err, agent.ErrUnknownToolKind):
		return "unknown_tool"
	default:
		return "error"
	}
}

var _ agent.Observer = (*Metrics)(nil)
