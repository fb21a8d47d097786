package build

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds build driver metrics.
type Metrics struct {
	Jobs        *prometheus.CounterVec
	StageDur    *prometheus.HistogramVec
	CacheLookup *prometheus.CounterVec
}

// NewMetrics creates the driver metrics. Register them with
// PrometheusCollectors.
func NewMetrics() *Metrics {
	const (
		namespace = "fsscompiler"
		subsystem = "build"
	)

	return &Metrics{
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_total",
			Help:      "Number of build jobs by terminal state and failure code",
		}, []string{"state", "code"}),

		StageDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Histogram of times spent in each build stage",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 5, 8),
		}, []string{"stage"}),

		CacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_lookups_total",
			Help:      "Number of artifact cache lookups by result",
		}, []string{"result"}),
	}
}

// PrometheusCollectors returns all driver collectors.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.Jobs, m.StageDur, m.CacheLookup}
}
