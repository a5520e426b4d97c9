package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the calendar service.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	queryDuration     *prometheus.HistogramVec
	resolvedInstances *prometheus.CounterVec
	corruption        prometheus.Counter
	orphanedInstances prometheus.Gauge
	cacheLookups      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "calendar",
			Name:      "query_duration_seconds",
			Help:      "Duration of recurring event instance queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		resolvedInstances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calendar",
			Name:      "resolved_instances_total",
			Help:      "Recurring event instances resolved, by operation",
		}, []string{"operation"}),
		corruption: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "calendar",
			Name:      "template_not_found_total",
			Help:      "Instances found referencing a missing template",
		}),
		orphanedInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "calendar",
			Name:      "orphaned_instances",
			Help:      "Orphaned instances seen by the last integrity audit",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calendar",
			Name:      "template_cache_lookups_total",
			Help:      "Template cache lookups, by result",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.queryDuration,
			m.resolvedInstances,
			m.corruption,
			m.orphanedInstances,
			m.cacheLookups,
		)
	}

	return m
}

// ObserveQuery records how long an operation took and whether it failed
func (m *Metrics) ObserveQuery(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.queryDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// AddResolved counts resolved instances returned by an operation
func (m *Metrics) AddResolved(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resolvedInstances.WithLabelValues(operation).Add(float64(n))
}

// IncTemplateNotFound counts one detected template-missing corruption
func (m *Metrics) IncTemplateNotFound() {
	if m == nil {
		return
	}
	m.corruption.Inc()
}

// SetOrphanedInstances records the size of the last audit result
func (m *Metrics) SetOrphanedInstances(n int) {
	if m == nil {
		return
	}
	m.orphanedInstances.Set(float64(n))
}

// AddCacheLookups counts template cache hits and misses
func (m *Metrics) AddCacheLookups(hits, misses int) {
	if m == nil {
		return
	}
	if hits > 0 {
		m.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		m.cacheLookups.WithLabelValues("miss").Add(float64(misses))
	}
}
