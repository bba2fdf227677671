package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. HTTP-level metrics
// are registered separately by the server; these cover the
// accountability domain itself.
type Metrics struct {
	Registry *prometheus.Registry

	TasksExpired          prometheus.Counter
	ParticipantsSuspended prometheus.Counter
	InstancesMaterialized prometheus.Counter
	PostponementsTotal    prometheus.Counter
	SweepDuration         prometheus.Histogram
}

// New creates the engine metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		TasksExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tasks_expired_total",
			Help: "Total number of submissions auto-expired by the sweep",
		}),
		ParticipantsSuspended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "participants_suspended_total",
			Help: "Total number of participants suspended by the strike engine",
		}),
		InstancesMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "task_instances_materialized_total",
			Help: "Total number of task instances created by recurrence expansion",
		}),
		PostponementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "task_postponements_total",
			Help: "Total number of task postponements",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "expiration_sweep_duration_seconds",
			Help:    "Duration of auto-expiration sweep passes",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.TasksExpired,
		m.ParticipantsSuspended,
		m.InstancesMaterialized,
		m.PostponementsTotal,
		m.SweepDuration,
	)

	return m
}
