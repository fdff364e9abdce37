package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bpmnchat"

// Metrics holds the engine collectors.
type Metrics struct {
	NodeVisits    *prometheus.CounterVec
	HookDuration  *prometheus.HistogramVec
	HookFailures  *prometheus.CounterVec
	Unmatched     *prometheus.CounterVec
	SessionsEnded *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_visits_total",
				Help:      "Total number of node visits",
			},
			[]string{"node_type"},
		),
		HookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hook_duration_seconds",
				Help:      "Duration of side-effect hook executions",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"hook_name"},
		),
		HookFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hook_failures_total",
				Help:      "Total number of failed hook executions",
			},
			[]string{"hook_name"},
		),
		Unmatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unmatched_inputs_total",
				Help:      "Total number of replies that matched no flow",
			},
			[]string{"node_id"},
		),
		SessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_ended_total",
				Help:      "Total number of ended sessions by reason",
			},
			[]string{"reason"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.NodeVisits, m.HookDuration, m.HookFailures, m.Unmatched, m.SessionsEnded)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnHookReturn: func(_ context.Context, e *domain.HookEvent) {
			m.HookDuration.WithLabelValues(e.HookName).Observe(e.Duration.Seconds())
			if e.IsError {
				m.HookFailures.WithLabelValues(e.HookName).Inc()
			}
		},
		OnNoMatch: func(_ context.Context, e *domain.InputEvent) {
			m.Unmatched.WithLabelValues(e.NodeID).Inc()
		},
		OnSessionEnd: func(_ context.Context, e *domain.EndEvent) {
			m.SessionsEnded.WithLabelValues(string(e.Reason)).Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
