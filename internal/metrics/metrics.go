// Package metrics exposes Prometheus collectors for snapshot computation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricSnapshotsTotal   = "analytics_snapshots_total"
	MetricSnapshotDuration = "analytics_snapshot_duration_seconds"
	MetricCacheLookups     = "analytics_snapshot_cache_lookups_total"
	MetricWarningsTotal    = "analytics_snapshot_warnings_total"
)

// Metrics records snapshot telemetry. It satisfies services.Recorder and is
// safe for concurrent use.
type Metrics struct {
	snapshots    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	warnings     prometheus.Counter
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSnapshotsTotal,
				Help: "Snapshot requests by outcome (computed, cached, error)",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSnapshotDuration,
				Help:    "Time to produce a snapshot in seconds by outcome",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCacheLookups,
				Help: "Snapshot cache lookups by result (hit, miss, error)",
			},
			[]string{"result"},
		),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricWarningsTotal,
			Help: "Data quality warnings attached to computed snapshots",
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.snapshots, m.duration, m.cacheLookups, m.warnings}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveComputation(status string, d time.Duration) {
	m.snapshots.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) Warnings(n int) {
	if n > 0 {
		m.warnings.Add(float64(n))
	}
}
