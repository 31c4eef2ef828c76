// Package metrics registers the Prometheus instruments for the push pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus metric the backend exports.
type Metrics struct {
	PushesSentTotal   prometheus.Counter
	PushesFailedTotal prometheus.Counter

	CampaignsDispatchedTotal *prometheus.CounterVec
	CampaignsResumedTotal    prometheus.Counter

	DispatchDurationSeconds prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered on a fresh
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PushesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellpath_pushes_sent_total",
			Help: "Total number of successful push deliveries",
		}),
		PushesFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellpath_pushes_failed_total",
			Help: "Total number of failed push deliveries",
		}),
		CampaignsDispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wellpath_campaigns_dispatched_total",
			Help: "Completed campaign dispatches by final status",
		}, []string{"status"}),
		CampaignsResumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wellpath_campaigns_resumed_total",
			Help: "Stalled campaigns requeued by the recovery sweep",
		}),
		DispatchDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wellpath_dispatch_duration_seconds",
			Help:    "Wall-clock duration of campaign dispatch runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.PushesSentTotal,
		m.PushesFailedTotal,
		m.CampaignsDispatchedTotal,
		m.CampaignsResumedTotal,
		m.DispatchDurationSeconds,
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
